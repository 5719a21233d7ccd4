package minio

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/hupe1980/fusego/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrationMinioStore(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	bucket := os.Getenv("MINIO_BUCKET")

	if endpoint == "" || bucket == "" {
		t.Skip("Skipping MinIO integration test: MINIO_ENDPOINT or MINIO_BUCKET not set")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4(os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"), ""),
	})
	require.NoError(t, err)

	ctx := context.Background()

	prefix := fmt.Sprintf("test-fusego-%d/", time.Now().UnixNano())
	store := NewStore(client, bucket, prefix)

	name := "snapshot.fsg"
	data := make([]byte, 1<<20)
	_, err = rand.Read(data)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, name, data))

	t.Cleanup(func() {
		_ = store.Delete(ctx, name)
	})

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, name)

	blob, err := store.Open(ctx, name)
	require.NoError(t, err)
	defer blob.Close()

	assert.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 100)
	_, err = blob.ReadAt(buf, 4096)
	require.NoError(t, err)
	assert.Equal(t, data[4096:4196], buf)

	_, err = store.Open(ctx, "does-not-exist")
	assert.True(t, errors.Is(err, blobstore.ErrNotFound))
}
