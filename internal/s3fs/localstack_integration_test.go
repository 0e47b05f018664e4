//go:build integration

package s3fs

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3fs-fuse/s3storage/internal/config"
	"github.com/s3fs-fuse/s3storage/internal/s3client"
)

const localstackEndpoint = "http://localhost:4566"

func newLocalStackFS(t *testing.T) *FileSystem {
	t.Helper()
	resp, err := (&http.Client{Timeout: 2 * time.Second}).Get(localstackEndpoint + "/_localstack/health")
	if err != nil {
		t.Skip("LocalStack is not available")
	}
	resp.Body.Close()

	cfg := &config.Config{
		AccessKey: "test",
		SecretKey: "test",
		EndPoint:  localstackEndpoint,
		Bucket:    "s3fs-facade-test",
		Region:    "us-east-1",
	}
	client := s3client.NewClientWithEndpoint(cfg.Bucket, cfg.Region, cfg.EndPoint, cfg.Credentials())
	if err := client.CreateBucket(context.Background()); err != nil &&
		!strings.Contains(err.Error(), "BucketAlreadyOwnedByYou") {
		t.Fatalf("Failed to create bucket: %v", err)
	}

	fs := New(WithBackend(client))
	require.NoError(t, fs.Init(context.Background(), cfg))
	t.Cleanup(func() { fs.Close() })
	return fs
}

func TestLocalStackDirectoryLifecycle(t *testing.T) {
	ctx := context.Background()
	fs := newLocalStackFS(t)
	dir := fmt.Sprintf("/run-%d", time.Now().UnixNano())

	ok, err := fs.Mkdir(ctx, dir)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = fs.Create(ctx, dir+"/file.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := fs.List(ctx, dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Path, dir+"/file.txt"))

	ok, err = fs.RenameTo(ctx, dir+"/", dir+"-moved/")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = fs.Exists(ctx, dir+"-moved/file.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = fs.Delete(ctx, dir+"-moved/")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = fs.Exists(ctx, dir+"-moved/file.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}
