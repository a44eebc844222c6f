// Package storage holds attachment payloads in an object store.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/config"
)

// ObjectMeta describes an object being stored.
type ObjectMeta struct {
	ChatID      string
	FileName    string
	ContentType string
}

// ObjectStore is the attachment payload backend.
type ObjectStore interface {
	Put(ctx context.Context, body []byte, meta ObjectMeta) (string, error)
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	Health(ctx context.Context) error
}

// ObjectKey returns chat/{chatID}/{uuid}{ext}. The client filename never becomes part of the path.
func ObjectKey(meta ObjectMeta) string {
	ext := strings.ToLower(path.Ext(meta.FileName))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return fmt.Sprintf("chat/%s/%s%s", meta.ChatID, uuid.NewString(), ext)
}

// New picks S3 when credentials are configured and the local filesystem otherwise.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (ObjectStore, error) {
	if cfg.S3Enabled() {
		return NewS3Storage(ctx, cfg, logger)
	}
	logger.Warn("ATTACHMENTS_S3_BUCKET or credentials not set; storing attachments on local disk",
		zap.String("path", cfg.LocalPath))
	return NewLocalStorage(cfg, logger)
}
