package storage

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/paulebil/UniHostel/config"
	"github.com/sirupsen/logrus"
)

type minioStore struct {
	client *minio.Client
	region string

	mu      sync.Mutex
	ensured map[string]bool
}

// NewMinioStore connects to an S3 compatible endpoint
func NewMinioStore(cfg *config.StorageConfig) (ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	logrus.WithField("endpoint", cfg.Endpoint).Info("Object storage configured")
	return &minioStore{client: client, region: cfg.Region, ensured: make(map[string]bool)}, nil
}

// EnsureBucket creates the bucket on first use
func (s *minioStore) EnsureBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ensured[bucket] {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !exists {
		err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region})
		if err != nil {
			// another instance may have created it in between
			if resp := minio.ToErrorResponse(err); resp.Code != "BucketAlreadyOwnedByYou" {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		logrus.WithField("bucket", bucket).Info("Bucket created")
	}

	s.ensured[bucket] = true
	return nil
}

func (s *minioStore) PutFile(ctx context.Context, bucket, key, path, contentType string) (ObjectInfo, error) {
	info, err := s.client.FPutObject(ctx, bucket, key, path, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to upload %s/%s: %w", bucket, key, err)
	}

	return ObjectInfo{
		Bucket:    info.Bucket,
		Key:       info.Key,
		VersionID: info.VersionID,
		ETag:      info.ETag,
	}, nil
}

func (s *minioStore) PresignedGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s/%s: %w", bucket, key, err)
	}
	return u.String(), nil
}

func (s *minioStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s/%s: %w", bucket, key, err)
}
