package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpoolWriteAndRemove(t *testing.T) {
	spool, err := NewSpool(filepath.Join(t.TempDir(), "spool"))
	require.NoError(t, err)

	path, err := spool.Write("receipt-*.html", []byte("<html></html>"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, spool.Dir()))
	assert.True(t, spool.Exists(path))

	require.NoError(t, spool.Remove(path))
	assert.False(t, spool.Exists(path))

	// second remove is a no-op
	assert.NoError(t, spool.Remove(path))
}

func TestLocalStorePutAndPresign(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	store := NewLocalStore(base)

	src := filepath.Join(t.TempDir(), "r.html")
	require.NoError(t, os.WriteFile(src, []byte("receipt body"), 0644))

	require.NoError(t, store.EnsureBucket(ctx, "receipts"))
	info, err := store.PutFile(ctx, "receipts", "2026/10/RCT-1.html", src, "text/html")
	require.NoError(t, err)

	assert.Equal(t, "receipts", info.Bucket)
	assert.Equal(t, "2026/10/RCT-1.html", info.Key)
	assert.Len(t, info.ETag, 32)

	ok, err := store.Exists(ctx, "receipts", "2026/10/RCT-1.html")
	require.NoError(t, err)
	assert.True(t, ok)

	link, err := store.PresignedGet(ctx, "receipts", "2026/10/RCT-1.html", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "file://"))

	data, err := os.ReadFile(filepath.Join(base, "receipts", "2026", "10", "RCT-1.html"))
	require.NoError(t, err)
	assert.Equal(t, "receipt body", string(data))
}

func TestLocalStoreMissingObject(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	ok, err := store.Exists(ctx, "receipts", "nope.html")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.PresignedGet(ctx, "receipts", "nope.html", time.Minute)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStoreKeyCannotEscapeBucket(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	store := NewLocalStore(base)

	src := filepath.Join(t.TempDir(), "r.html")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	_, err := store.PutFile(ctx, "receipts", "../../escape.html", src, "text/html")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(base, "receipts", "escape.html"))

	assert.Error(t, store.EnsureBucket(ctx, "../up"))
}
