package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type localStore struct {
	basePath string
}

// NewLocalStore keeps objects under basePath/<bucket>/<key>. Meant for
// development; presigned URLs are plain file:// links.
func NewLocalStore(basePath string) ObjectStore {
	return &localStore{basePath: basePath}
}

func (s *localStore) objectPath(bucket, key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(bucket, "/") || bucket == "" || bucket == ".." {
		return "", fmt.Errorf("invalid bucket name %q", bucket)
	}
	return filepath.Join(s.basePath, bucket, clean), nil
}

func (s *localStore) EnsureBucket(ctx context.Context, bucket string) error {
	if _, err := s.objectPath(bucket, ""); err != nil {
		return err
	}
	// Создаем директорию если нужно
	return os.MkdirAll(filepath.Join(s.basePath, bucket), 0755)
}

func (s *localStore) PutFile(ctx context.Context, bucket, key, path, contentType string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}

	fullPath, err := s.objectPath(bucket, key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return ObjectInfo{}, err
	}

	src, err := os.Open(path)
	if err != nil {
		return ObjectInfo{}, err
	}
	defer src.Close()

	dst, err := os.Create(fullPath)
	if err != nil {
		return ObjectInfo{}, err
	}

	hash := md5.New()
	if _, err := io.Copy(io.MultiWriter(dst, hash), src); err != nil {
		dst.Close()
		return ObjectInfo{}, err
	}
	if err := dst.Close(); err != nil {
		return ObjectInfo{}, err
	}

	return ObjectInfo{
		Bucket: bucket,
		Key:    key,
		ETag:   hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

func (s *localStore) PresignedGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	fullPath, err := s.objectPath(bucket, key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return "", ErrObjectNotFound
		}
		return "", err
	}

	abs, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: abs}).String(), nil
}

func (s *localStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	fullPath, err := s.objectPath(bucket, key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(fullPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}
