package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aihub/ai-gateway/internal/config"
	"github.com/aihub/ai-gateway/internal/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MediaStore 生成内容对象存储
type MediaStore struct {
	client *minio.Client
	bucket string
}

var globalMediaStore *MediaStore

// NewMediaStore 创建MinIO媒体存储实例
func NewMediaStore() (*MediaStore, error) {
	if globalMediaStore != nil {
		return globalMediaStore, nil
	}

	cfg := config.AppConfig.Storage
	if !cfg.Enabled {
		return nil, fmt.Errorf("object storage not enabled")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint not configured")
	}

	// minio.New 不需要协议前缀
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	store := &MediaStore{
		client: client,
		bucket: cfg.Bucket,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}

	globalMediaStore = store
	return store, nil
}

// GetMediaStore 获取全局媒体存储实例（未初始化时返回nil）
func GetMediaStore() *MediaStore {
	return globalMediaStore
}

func (s *MediaStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	if err != nil {
		// 并发初始化时bucket可能已被创建
		errStr := err.Error()
		if strings.Contains(errStr, "BucketAlreadyExists") ||
			strings.Contains(errStr, "BucketAlreadyOwnedByYou") {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}

	logger.Info("MinIO bucket created", zap.String("bucket", s.bucket))
	return nil
}

// UploadMedia 上传生成的媒体内容，返回对象key
func (s *MediaStore) UploadMedia(ctx context.Context, userID, requestID, mediaType string, data []byte, contentType string) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("minio client not initialized")
	}

	objectKey := fmt.Sprintf("%s/%s/%s%s", mediaType, userID, requestID, extensionFor(contentType))

	_, err := s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}

	return objectKey, nil
}

// PresignedURL 获取媒体内容的预签名访问URL
func (s *MediaStore) PresignedURL(ctx context.Context, objectKey string, expires time.Duration) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("minio client not initialized")
	}

	if expires == 0 {
		expires = 24 * time.Hour
	}

	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, expires, nil)
	if err != nil {
		return "", err
	}

	return url.String(), nil
}

// HealthCheck 执行健康检查
func (s *MediaStore) HealthCheck(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("minio client not initialized")
	}
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav":
		return ".wav"
	default:
		return ""
	}
}
