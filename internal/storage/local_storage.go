package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/config"
)

// LocalURLPrefix is the route local attachments are served from.
const LocalURLPrefix = "/attachments"

// LocalStorage keeps attachments on the local filesystem for development.
type LocalStorage struct {
	basePath string
	baseURL  string
	logger   *zap.Logger
}

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(cfg config.StorageConfig, logger *zap.Logger) (*LocalStorage, error) {
	basePath := strings.TrimSpace(cfg.LocalPath)
	if basePath == "" {
		return nil, errors.New("ATTACHMENTS_LOCAL_PATH is required when s3 is not configured")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage directory: %w", err)
	}
	return &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.LocalBaseURL), "/"),
		logger:   logger.With(zap.String("component", "local-storage")),
	}, nil
}

// BasePath returns the directory attachments are written to.
func (l *LocalStorage) BasePath() string {
	return l.basePath
}

func (l *LocalStorage) path(key string) (string, error) {
	full := filepath.Join(l.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(l.basePath, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return full, nil
}

func (l *LocalStorage) Put(ctx context.Context, body []byte, meta ObjectMeta) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := ObjectKey(meta)
	full, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(full, body, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return key, nil
}

// Presign returns a direct URL; local files are served without expiry.
func (l *LocalStorage) Presign(ctx context.Context, key string, _ time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := l.path(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); err != nil {
		return "", err
	}
	return l.baseURL + LocalURLPrefix + "/" + key, nil
}

func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (l *LocalStorage) Health(context.Context) error {
	_, err := os.Stat(l.basePath)
	return err
}
