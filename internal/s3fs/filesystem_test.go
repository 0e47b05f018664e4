package s3fs

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3fs-fuse/s3storage/internal/config"
	"github.com/s3fs-fuse/s3storage/internal/errs"
	"github.com/s3fs-fuse/s3storage/internal/logger"
	"github.com/s3fs-fuse/s3storage/internal/s3client"
)

var accessDenied = errs.New(errs.KindAccessDenied, "Access Denied")

func testConfig() *config.Config {
	return &config.Config{
		AccessKey: "AKIA",
		SecretKey: "secret",
		EndPoint:  "http://localhost:4566",
		Bucket:    "b",
		Region:    "us-east-1",
		Label:     "warehouse",
	}
}

// newTestFS returns a Ready FileSystem over a fresh MockClient.
func newTestFS(t *testing.T) (*FileSystem, *s3client.MockClient) {
	t.Helper()
	mock := s3client.NewMockClient("b", "us-east-1")
	fs := New(WithBackend(mock), WithLogger(logger.Nop()))
	require.NoError(t, fs.Init(context.Background(), testConfig()))
	return fs, mock
}

func put(t *testing.T, mock *s3client.MockClient, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, mock.PutObject(context.Background(), k, []byte("data:"+k), nil))
	}
}

func readAll(t *testing.T, fs *FileSystem, p string) string {
	t.Helper()
	rc, err := fs.Read(context.Background(), p)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestInitBindsBucketAndLabel(t *testing.T) {
	fs, _ := newTestFS(t)

	assert.Equal(t, "b", fs.Bucket())
	assert.Equal(t, "warehouse", fs.Label())
	assert.Equal(t, "s3", fs.FsName())
	assert.Equal(t, "", fs.RootUserName())
	assert.Equal(t, "/", fs.ListRoot())
}

func TestInitMissingSettings(t *testing.T) {
	fs := New(WithBackend(s3client.NewMockClient("b", "us-east-1")))

	cfg := testConfig()
	cfg.SecretKey = ""
	cfg.Region = ""
	err := fs.Init(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
	assert.Contains(t, err.Error(), "secretKey")
	assert.Contains(t, err.Error(), "region")

	// A failed Init leaves the filesystem unbound.
	_, err = fs.Exists(context.Background(), "/a")
	assert.True(t, errs.IsUsage(err))

	err = fs.Init(context.Background(), nil)
	assert.True(t, errs.IsConfiguration(err))
}

func TestInitTwice(t *testing.T) {
	fs, _ := newTestFS(t)
	err := fs.Init(context.Background(), testConfig())
	require.Error(t, err)
	assert.True(t, errs.IsUsage(err))
}

func TestOperationsRequireReady(t *testing.T) {
	ctx := context.Background()
	fs := New(WithBackend(s3client.NewMockClient("b", "us-east-1")))

	checks := map[string]func() error{
		"read":   func() error { _, err := fs.Read(ctx, "/a.txt"); return err },
		"write":  func() error { _, err := fs.Write(ctx, "/a.txt", true); return err },
		"exists": func() error { _, err := fs.Exists(ctx, "/a.txt"); return err },
		"get":    func() error { _, err := fs.Get(ctx, "/a.txt"); return err },
		"create": func() error { _, err := fs.Create(ctx, "/a.txt"); return err },
		"mkdir":  func() error { _, err := fs.Mkdir(ctx, "/d"); return err },
		"list":   func() error { _, err := fs.List(ctx, "/d"); return err },
		"lsdir":  func() error { _, err := fs.ListPathWithError(ctx, "/d"); return err },
		"delete": func() error { _, err := fs.Delete(ctx, "/d"); return err },
		"copy":   func() error { _, err := fs.Copy(ctx, "/d", "/e"); return err },
		"rename": func() error { _, err := fs.RenameTo(ctx, "/d", "/e"); return err },
	}
	for name, check := range checks {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errs.IsUsage(check()))
		})
	}
}

func TestClose(t *testing.T) {
	fs, _ := newTestFS(t)
	require.NoError(t, fs.Close())
	require.NoError(t, fs.Close())

	_, err := fs.Exists(context.Background(), "/a.txt")
	assert.True(t, errs.IsUsage(err))
	assert.Contains(t, err.Error(), "closed")

	err = fs.Init(context.Background(), testConfig())
	assert.True(t, errs.IsUsage(err))
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	fs, mock := newTestFS(t)
	put(t, mock, "d/file.txt")

	got, err := fs.Get(ctx, "/d/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "/d/file.txt", got.Path)
	assert.False(t, got.IsDir)

	got, err = fs.Get(ctx, "/d")
	require.NoError(t, err)
	assert.True(t, got.IsDir)

	_, err = fs.Get(ctx, "/missing.txt")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.Contains(t, err.Error(), "/missing.txt")
}

func TestExistsHeuristic(t *testing.T) {
	ctx := context.Background()
	fs, mock := newTestFS(t)
	put(t, mock, "d/file.txt", "e/sub/x", "plain")

	for p, want := range map[string]bool{
		"/d/file.txt":  true,
		"/d/other.txt": false,
		"/d":           true,
		"/d/":          true,
		"/e":           true,
		"/e/sub":       true,
		"/nothing":     false,
		"s3:///d":      true,
		"":             false,
		// Extensionless files are checked as directories and are not found.
		"/plain": false,
	} {
		ok, err := fs.Exists(ctx, p)
		require.NoError(t, err, p)
		assert.Equal(t, want, ok, p)
	}
}

func TestExistsAccessDeniedIsFalse(t *testing.T) {
	ctx := context.Background()
	fs, mock := newTestFS(t)
	put(t, mock, "d/file.txt")

	mock.FailWith(s3client.OpExists, "", accessDenied)
	mock.FailWith(s3client.OpList, "", accessDenied)

	ok, err := fs.Exists(ctx, "/d/file.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = fs.Exists(ctx, "/d")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExistsTransportErrorPropagates(t *testing.T) {
	fs, mock := newTestFS(t)
	mock.FailWith(s3client.OpExists, "", errs.New(errs.KindIO, "connection reset"))

	_, err := fs.Exists(context.Background(), "/d/file.txt")
	require.Error(t, err)
	assert.True(t, errs.IsIO(err))
}

func TestReadErrors(t *testing.T) {
	ctx := context.Background()
	fs, mock := newTestFS(t)

	_, err := fs.Read(ctx, "/missing.txt")
	assert.True(t, errs.IsNotFound(err))

	put(t, mock, "secret.txt")
	mock.FailWith(s3client.OpGet, "secret", accessDenied)
	_, err = fs.Read(ctx, "/secret.txt")
	assert.True(t, errs.IsAccessDenied(err))
	assert.Contains(t, err.Error(), "/secret.txt")
}

func TestWriteOverwriteRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs, mock := newTestFS(t)
	put(t, mock, "d/a.txt")

	w, err := fs.Write(ctx, "/d/a.txt", true)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Len())
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "hello", readAll(t, fs, "/d/a.txt"))
}

func TestWriteWithoutOverwritePrependsExisting(t *testing.T) {
	ctx := context.Background()
	fs, mock := newTestFS(t)
	require.NoError(t, mock.PutObject(ctx, "d/a.txt", []byte("old-"), nil))

	w, err := fs.Write(ctx, "/d/a.txt", false)
	require.NoError(t, err)
	_, err = io.Copy(w, bytes.NewBufferString("new"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "old-new", readAll(t, fs, "/d/a.txt"))
}

func TestWriteWithoutOverwriteMissingStartsEmpty(t *testing.T) {
	ctx := context.Background()
	fs, _ := newTestFS(t)

	w, err := fs.Write(ctx, "/fresh.txt", false)
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "x", readAll(t, fs, "/fresh.txt"))
}

func TestWriteReadDenied(t *testing.T) {
	fs, mock := newTestFS(t)
	put(t, mock, "d/a.txt")
	mock.FailWith(s3client.OpGet, "d/", accessDenied)

	_, err := fs.Write(context.Background(), "/d/a.txt", false)
	assert.True(t, errs.IsAccessDenied(err))

	// overwrite skips the read entirely
	w, err := fs.Write(context.Background(), "/d/a.txt", true)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestPermissionShims(t *testing.T) {
	fs := New()

	assert.True(t, fs.CanRead("/a"))
	assert.False(t, fs.CanReadAs("/a", "hadoop"))
	assert.True(t, fs.CanWrite("/a"))
	assert.True(t, fs.CanExecute("/a"))
	assert.Zero(t, fs.TotalSpace("/a"))
	assert.Zero(t, fs.FreeSpace("/a"))
	assert.Zero(t, fs.UsableSpace("/a"))
	assert.False(t, fs.SetOwner("/a", "u"))
	assert.False(t, fs.SetOwnerGroup("/a", "u", "g"))
	assert.False(t, fs.SetGroup("/a", "g"))
	assert.False(t, fs.SetPermission("/a", "rwxr-xr-x"))
}

// End to end: mkdir, create, list, delete, exists.
func TestDirectoryLifecycle(t *testing.T) {
	ctx := context.Background()
	fs, _ := newTestFS(t)

	ok, err := fs.Mkdir(ctx, "/d")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = fs.Create(ctx, "/d/file.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := fs.List(ctx, "/d")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "s3:///d/file.txt", entries[0].Path)
	assert.False(t, entries[0].IsDir)

	ok, err = fs.Delete(ctx, "/d")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = fs.Exists(ctx, "/d/file.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}
