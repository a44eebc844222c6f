package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/support-chat/internal/config"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/observability"
	"github.com/spec-kit/support-chat/internal/storage"
	apperrors "github.com/spec-kit/support-chat/pkg/util/errorutil"
)

// allowedMIME reports whether mimeType is an accepted image, document or text type.
func allowedMIME(mimeType string) bool {
	switch mimeType {
	case "image/png", "image/jpeg", "image/gif", "image/webp",
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.oasis.opendocument.text",
		"text/plain", "text/csv":
		return true
	default:
		return false
	}
}

const (
	maxFileNameLength  = 255
	deleteConcurrency  = 4
	defaultMaxUploadMB = 10
)

// Upload is an attachment payload received from a client.
type Upload struct {
	FileName string
	Data     []byte
}

// AttachmentService manages attachment payloads in the object store.
type AttachmentService struct {
	store          storage.ObjectStore
	maxBytes       int64
	presignTTL     time.Duration
	presignTimeout time.Duration
	metrics        *observability.Metrics
	logger         *zap.Logger
}

// NewAttachmentService constructs the service.
func NewAttachmentService(store storage.ObjectStore, cfg config.StorageConfig, metrics *observability.Metrics, logger *zap.Logger) *AttachmentService {
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadMB * 1024 * 1024
	}
	return &AttachmentService{
		store:          store,
		maxBytes:       maxBytes,
		presignTTL:     cfg.PresignTTL(),
		presignTimeout: cfg.PresignTimeout(),
		metrics:        metrics,
		logger:         logger.With(zap.String("component", "attachments")),
	}
}

// MaxBytes returns the upload size limit.
func (s *AttachmentService) MaxBytes() int64 {
	return s.maxBytes
}

// Validate checks size and sniffed MIME type and returns the detected type.
func (s *AttachmentService) Validate(up Upload) (string, error) {
	if len(up.Data) == 0 {
		return "", apperrors.NewFieldError("file", "file is empty")
	}
	if int64(len(up.Data)) > s.maxBytes {
		return "", apperrors.NewFieldError("file", fmt.Sprintf("file exceeds max size of %d bytes", s.maxBytes))
	}
	detected := mimetype.Detect(up.Data)
	mimeType := strings.TrimSpace(strings.SplitN(detected.String(), ";", 2)[0])
	if mimeType == "text/plain" && strings.EqualFold(filepath.Ext(up.FileName), ".csv") {
		mimeType = "text/csv"
	}
	if !allowedMIME(mimeType) {
		return "", apperrors.NewFieldError("file", fmt.Sprintf("unsupported mime type %s", mimeType))
	}
	return mimeType, nil
}

// Upload validates the payload and stores it under the chat's key space.
func (s *AttachmentService) Upload(ctx context.Context, chatID string, up Upload) (*domain.Attachment, error) {
	mimeType, err := s.Validate(up)
	if err != nil {
		return nil, err
	}
	name := sanitizeFileName(up.FileName)
	key, err := s.store.Put(ctx, up.Data, storage.ObjectMeta{ChatID: chatID, FileName: name, ContentType: mimeType})
	if err != nil {
		s.metrics.RecordAttachmentOp("upload", "error")
		return nil, apperrors.NewTransient(err)
	}
	s.metrics.RecordAttachmentOp("upload", "ok")
	return &domain.Attachment{ObjectKey: key, FileName: name, SizeBytes: int64(len(up.Data)), MimeType: mimeType}, nil
}

// PresignedURL returns a time-limited retrieval URL, or "" when the store
// fails or does not answer within the presign timeout.
func (s *AttachmentService) PresignedURL(ctx context.Context, key string, ttl time.Duration) string {
	if key == "" {
		return ""
	}
	if ttl <= 0 {
		ttl = s.presignTTL
	}
	if s.presignTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.presignTimeout)
		defer cancel()
	}

	start := time.Now()
	url, err := s.store.Presign(ctx, key, ttl)
	s.metrics.RecordPresign(time.Since(start))
	if err != nil {
		s.logger.Warn("presign failed", zap.String("object_key", key), zap.Error(err))
		return ""
	}
	return url
}

// Delete removes an object. Failures are logged.
func (s *AttachmentService) Delete(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.metrics.RecordAttachmentOp("delete", "error")
		s.logger.Warn("attachment delete failed", zap.String("object_key", key), zap.Error(err))
		return
	}
	s.metrics.RecordAttachmentOp("delete", "ok")
}

// DeleteAll issues a delete for every key with bounded concurrency and
// returns the number of failures.
func (s *AttachmentService) DeleteAll(ctx context.Context, keys []string) int {
	var g errgroup.Group
	g.SetLimit(deleteConcurrency)

	failures := make([]bool, len(keys))
	for i, key := range keys {
		g.Go(func() error {
			if err := s.store.Delete(ctx, key); err != nil {
				failures[i] = true
				s.metrics.RecordAttachmentOp("delete", "error")
				s.logger.Warn("attachment delete failed", zap.String("object_key", key), zap.Error(err))
				return nil
			}
			s.metrics.RecordAttachmentOp("delete", "ok")
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, f := range failures {
		if f {
			failed++
		}
	}
	return failed
}

func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(strings.ToValidUTF8(name, ""), "\x00", "")
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, `\`, "/")))
	if name == "" || name == "." || name == "/" {
		name = "attachment"
	}
	if r := []rune(name); len(r) > maxFileNameLength {
		name = string(r[:maxFileNameLength])
	}
	return name
}
