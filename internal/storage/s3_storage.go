package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/config"
)

// S3Storage stores attachments in an S3-compatible bucket.
type S3Storage struct {
	bucket  string
	client  *s3.Client
	presign *s3.PresignClient
	logger  *zap.Logger
}

// NewS3Storage builds an S3 client from static credentials.
func NewS3Storage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*S3Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			strings.TrimSpace(cfg.S3AccessKeyID), strings.TrimSpace(cfg.S3SecretKey), "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	logger.Info("attachments stored in s3", zap.String("bucket", cfg.S3Bucket), zap.String("region", cfg.S3Region))
	return &S3Storage{
		bucket:  strings.TrimSpace(cfg.S3Bucket),
		client:  client,
		presign: s3.NewPresignClient(client),
		logger:  logger.With(zap.String("component", "s3-storage")),
	}, nil
}

func (s *S3Storage) Put(ctx context.Context, body []byte, meta ObjectMeta) (string, error) {
	key := ObjectKey(meta)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(meta.ContentType),
		Metadata: map[string]string{
			"chat-id":  meta.ChatID,
			"filename": meta.FileName,
		},
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}

func (s *S3Storage) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// Health performs a HeadBucket request.
func (s *S3Storage) Health(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}
