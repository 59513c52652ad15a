package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned when a key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes an uploaded object.
type ObjectInfo struct {
	Bucket    string
	Key       string
	VersionID string
	ETag      string
}

// ObjectStore is the durable home of rendered receipts.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	PutFile(ctx context.Context, bucket, key, path, contentType string) (ObjectInfo, error)
	PresignedGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
}
