package s3fs

import (
	"context"
	"strings"

	"github.com/s3fs-fuse/s3storage/internal/pathutil"
)

// MarkerName is the reserved object name that makes an otherwise empty
// directory visible to listings.
const MarkerName = ".s3_dir_init"

// IsMarker reports whether key names a directory marker.
func IsMarker(key string) bool {
	return strings.Contains(key, MarkerName)
}

// markerKey returns the marker key for directory p.
func markerKey(p string) string {
	return pathutil.ToPrefix(p) + MarkerName
}

// Mkdir creates the marker object for directory p. It returns false if the
// marker already exists.
func (fs *FileSystem) Mkdir(ctx context.Context, p string) (bool, error) {
	if err := fs.ready(); err != nil {
		return false, err
	}
	key := markerKey(normalize(p))

	exists, err := fs.backend.DoesObjectExist(ctx, key)
	if err != nil {
		return false, storeError(err, "failed to check directory", p)
	}
	if exists {
		return false, nil
	}
	if err := fs.backend.PutObject(ctx, key, nil, nil); err != nil {
		return false, storeError(err, "failed to create directory", p)
	}
	fs.log.With().Str("path", p).Logger().Debug("directory created")
	return true, nil
}

// Mkdirs is Mkdir. Parent directories are not created: every key is
// addressable without markers for its parents.
func (fs *FileSystem) Mkdirs(ctx context.Context, p string) (bool, error) {
	return fs.Mkdir(ctx, p)
}
