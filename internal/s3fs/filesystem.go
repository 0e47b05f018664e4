// Package s3fs emulates a hierarchical filesystem on top of a flat object
// store. Directories are represented by reserved marker objects and by key
// prefixes; rename, copy and delete are client-side plans of list, copy and
// delete requests with no atomicity across keys.
package s3fs

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/s3fs-fuse/s3storage/internal/config"
	"github.com/s3fs-fuse/s3storage/internal/errs"
	"github.com/s3fs-fuse/s3storage/internal/logger"
	"github.com/s3fs-fuse/s3storage/internal/pathutil"
	"github.com/s3fs-fuse/s3storage/internal/storage"
	"github.com/s3fs-fuse/s3storage/internal/storage/types"
)

// FsName is the filesystem type name reported by FileSystem.FsName.
const FsName = "s3"

const (
	stateUninitialized int32 = iota
	stateReady
	stateClosed
)

// Option configures a FileSystem at construction.
type Option func(*FileSystem)

// WithBackend binds the FileSystem to an existing backend instead of
// building one from the configuration passed to Init.
func WithBackend(b types.Backend) Option {
	return func(fs *FileSystem) {
		fs.backend = b
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logger.Logger) Option {
	return func(fs *FileSystem) {
		fs.log = l
	}
}

// FileSystem is the filesystem facade over one bucket.
//
// A FileSystem is created Uninitialized, becomes Ready after a successful
// Init and is Closed by Close. Data operations outside Ready fail with a
// usage error. Once Ready, the bound backend, bucket and label never change
// and the FileSystem is safe for concurrent use. Operations on overlapping
// prefixes are not isolated from each other.
type FileSystem struct {
	mu      sync.Mutex // serializes Init and Close
	state   atomic.Int32
	backend types.Backend
	log     *logger.Logger

	bucket  string
	label   string
	maxKeys int32
}

// New creates an uninitialized FileSystem.
func New(opts ...Option) *FileSystem {
	fs := &FileSystem{log: logger.Nop()}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Init validates cfg and binds the FileSystem to its bucket. It may be
// called once; rebinding requires a new FileSystem.
func (fs *FileSystem) Init(ctx context.Context, cfg *config.Config) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.state.Load() != stateUninitialized {
		return errs.New(errs.KindUsage, "filesystem already initialized")
	}
	if cfg == nil {
		return errs.New(errs.KindConfiguration, "missing configuration")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if fs.backend == nil {
		backend, err := storage.NewBackend(ctx, cfg)
		if err != nil {
			return err
		}
		fs.backend = backend
	}

	fs.bucket = cfg.Bucket
	fs.label = cfg.Label
	fs.maxKeys = cfg.MaxKeys
	fs.log = fs.log.With().Str("bucket", cfg.Bucket).Logger()
	fs.state.Store(stateReady)

	fs.log.With().
		Str("provider", string(cfg.Provider)).
		Str("endpoint", cfg.EndPoint).
		Str("region", cfg.Region).
		Logger().Info("filesystem initialized")
	return nil
}

// Close releases the backend. Closing twice is harmless.
func (fs *FileSystem) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prev := fs.state.Swap(stateClosed)
	if prev != stateReady || fs.backend == nil {
		return nil
	}
	if err := fs.backend.Close(); err != nil {
		return errs.Wrap(errs.KindIO, "failed to close backend", err)
	}
	return nil
}

// ready returns a usage error unless the FileSystem is Ready.
func (fs *FileSystem) ready() error {
	switch fs.state.Load() {
	case stateReady:
		return nil
	case stateClosed:
		return errs.New(errs.KindUsage, "filesystem is closed")
	default:
		return errs.New(errs.KindUsage, "filesystem is not initialized")
	}
}

// FsName returns "s3".
func (fs *FileSystem) FsName() string {
	return FsName
}

// RootUserName returns the name of the superuser, which object stores do not have.
func (fs *FileSystem) RootUserName() string {
	return ""
}

// Label returns the label bound at Init.
func (fs *FileSystem) Label() string {
	return fs.label
}

// Bucket returns the bucket bound at Init.
func (fs *FileSystem) Bucket() string {
	return fs.bucket
}

// ListRoot returns the root path.
func (fs *FileSystem) ListRoot() string {
	return pathutil.Separator
}

// Get returns p if it exists and a not-found error otherwise. IsDir is set
// from the same name heuristic Exists uses.
func (fs *FileSystem) Get(ctx context.Context, p string) (FsPath, error) {
	ok, err := fs.Exists(ctx, p)
	if err != nil {
		return FsPath{}, err
	}
	if !ok {
		fs.log.With().Str("path", p).Logger().Warn("file or directory does not exist")
		return FsPath{}, errs.New(errs.KindNotFound, "file or directory does not exist", p)
	}
	return FsPath{Path: p, IsDir: !pathutil.LooksLikeFile(normalize(p))}, nil
}

// Read opens the object at p. The caller must close the reader.
func (fs *FileSystem) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := fs.ready(); err != nil {
		return nil, err
	}
	key := pathutil.ToKeyExact(normalize(p))
	rc, err := fs.backend.GetObject(ctx, key)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.Wrap(errs.KindNotFound, "no such file", err, p)
		}
		return nil, storeError(err, "failed to read", p)
	}
	return rc, nil
}

// Write opens a Writer that replaces the object at p when closed.
//
// With overwrite false the current content of p, if any, is copied into the
// Writer first, so bytes written afterwards follow the existing ones. With
// overwrite true the Writer starts empty and the prior content is lost on
// Close unless rewritten.
func (fs *FileSystem) Write(ctx context.Context, p string, overwrite bool) (*Writer, error) {
	if err := fs.ready(); err != nil {
		return nil, err
	}
	key := pathutil.ToKeyExact(normalize(p))
	w := newWriter(ctx, fs.backend, key)
	if overwrite {
		return w, nil
	}

	rc, err := fs.backend.GetObject(ctx, key)
	switch {
	case errs.IsNotFound(err):
		return w, nil
	case err != nil:
		return nil, storeError(err, "failed to read existing content", p)
	}
	defer rc.Close()

	if _, err := io.Copy(&w.buf, rc); err != nil {
		return nil, storeError(err, "failed to read existing content", p)
	}
	return w, nil
}

// Exists reports whether p exists. A path whose last element contains a dot
// is checked as a single object; anything else is checked as a directory
// prefix that has at least one object or sub-prefix below it.
//
// Authorization failures report false rather than an error.
func (fs *FileSystem) Exists(ctx context.Context, p string) (bool, error) {
	if err := fs.ready(); err != nil {
		return false, err
	}
	np := normalize(p)
	if np == "" {
		return false, nil
	}

	var (
		ok  bool
		err error
	)
	if pathutil.LooksLikeFile(np) {
		ok, err = fs.backend.DoesObjectExist(ctx, pathutil.ToKeyExact(np))
	} else {
		var out *types.ListOutput
		out, err = fs.backend.ListObjectsV2(ctx, types.ListInput{
			Prefix:    pathutil.ToPrefix(np),
			Delimiter: pathutil.Separator,
			MaxKeys:   fs.maxKeys,
		})
		if err == nil {
			ok = len(out.Objects)+len(out.CommonPrefixes) > 0
		}
	}

	if errs.IsAccessDenied(err) {
		fs.log.With().Str("path", p).Logger().Debug("exists check denied, reporting absent")
		return false, nil
	}
	if err != nil {
		return false, storeError(err, "failed to check existence", p)
	}
	return ok, nil
}
