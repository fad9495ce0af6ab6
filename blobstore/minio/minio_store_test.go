package minio

import (
	"context"
	"testing"

	"github.com/hupe1980/gridstore/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMinioStore_Integration requires a running MinIO instance.
func TestMinioStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()
	if _, err = client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	bucket := "test-gridstore"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "pv.0.ttp.lz4b", data))

	got, err := store.Get(ctx, "pv.0.ttp.lz4b")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	ok, err := store.Exists(ctx, "pv.0.ttp.lz4b")
	require.NoError(t, err)
	assert.True(t, ok)

	names, err := store.List(ctx, "pv.")
	require.NoError(t, err)
	assert.Contains(t, names, "pv.0.ttp.lz4b")

	require.NoError(t, store.Delete(ctx, "pv.0.ttp.lz4b"))
	require.NoError(t, store.Delete(ctx, "pv.0.ttp.lz4b"))

	_, err = store.Get(ctx, "pv.0.ttp.lz4b")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
