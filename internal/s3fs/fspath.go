package s3fs

import (
	"strings"
	"time"

	"github.com/s3fs-fuse/s3storage/internal/pathutil"
)

// FsPath is a filesystem path together with the metadata a listing reports
// for it. Values returned by the FileSystem are copies and may be annotated
// freely by the caller.
type FsPath struct {
	// Path is the logical path. Entries built from listed keys carry the
	// "s3://" schema token, e.g. "s3:///warehouse/part-0.csv".
	Path  string
	IsDir bool

	// Length is the object size in bytes; zero for directories.
	Length int64

	// ModificationTime is the last-modified time in milliseconds since the epoch.
	ModificationTime int64

	// Owner is the owner display name, empty when the store reports none.
	Owner string
}

// NewFsPath returns a bare FsPath for p with no metadata.
func NewFsPath(p string) FsPath {
	return FsPath{Path: p}
}

// Name returns the last element of the path.
func (p FsPath) Name() string {
	return pathutil.Base(strings.TrimPrefix(p.Path, pathutil.Schema))
}

// LocalPath returns the separator-rooted path with the schema token removed.
func (p FsPath) LocalPath() string {
	return pathutil.FromURI(p.Path)
}

// ModTime returns ModificationTime as a time.Time.
func (p FsPath) ModTime() time.Time {
	return time.UnixMilli(p.ModificationTime)
}

// normalize accepts either a plain path or an "s3://" URI and returns the
// path component used for key translation.
func normalize(p string) string {
	if strings.HasPrefix(p, pathutil.Schema) {
		return pathutil.FromURI(p)
	}
	return p
}
