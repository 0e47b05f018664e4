package s3fs

import (
	"context"
	"strings"

	"github.com/s3fs-fuse/s3storage/internal/errs"
	"github.com/s3fs-fuse/s3storage/internal/pathutil"
	"github.com/s3fs-fuse/s3storage/internal/storage/types"
)

// FsPathListWithError is the result of a shallow directory listing. Error is
// empty on success.
type FsPathListWithError struct {
	Paths []FsPath
	Error string
}

// List returns every object whose key starts with the key of p, at any
// depth, excluding directory markers. Entries are in store order.
func (fs *FileSystem) List(ctx context.Context, p string) ([]FsPath, error) {
	if err := fs.ready(); err != nil {
		return nil, err
	}
	np := normalize(p)
	if np == "" {
		return []FsPath{}, nil
	}

	out, err := fs.listPage(ctx, types.ListInput{Prefix: pathutil.ToKeyExact(np)})
	if err != nil {
		return nil, storeError(err, "failed to list", p)
	}

	paths := make([]FsPath, 0, len(out.Objects))
	for _, obj := range out.Objects {
		if IsMarker(obj.Key) {
			continue
		}
		paths = append(paths, fs.fillStorageFile(obj))
	}
	return paths, nil
}

// ListPathWithError lists the direct children of directory p, skipping
// directory markers.
func (fs *FileSystem) ListPathWithError(ctx context.Context, p string) (*FsPathListWithError, error) {
	return fs.ListDir(ctx, p, true)
}

// ListDir lists the direct children of directory p: the objects directly
// below it followed by one directory entry per sub-prefix. Markers are
// included unless ignoreInitFile is set.
func (fs *FileSystem) ListDir(ctx context.Context, p string, ignoreInitFile bool) (*FsPathListWithError, error) {
	if err := fs.ready(); err != nil {
		return nil, err
	}
	np := normalize(p)
	if np == "" {
		return &FsPathListWithError{Paths: []FsPath{}}, nil
	}

	out, err := fs.listPage(ctx, types.ListInput{
		Prefix:    pathutil.ToPrefix(np),
		Delimiter: pathutil.Separator,
	})
	if err != nil {
		if errs.IsAccessDenied(err) {
			return nil, errs.Wrap(errs.KindAccessDenied, "permission denied", err, p)
		}
		return nil, storeError(err, "failed to list directory", p)
	}

	paths := make([]FsPath, 0, len(out.Objects)+len(out.CommonPrefixes))
	for _, obj := range out.Objects {
		if ignoreInitFile && IsMarker(obj.Key) {
			continue
		}
		paths = append(paths, fs.fillStorageFile(obj))
	}
	for _, prefix := range out.CommonPrefixes {
		paths = append(paths, FsPath{Path: pathutil.ToPath(prefix), IsDir: true})
	}
	return &FsPathListWithError{Paths: paths}, nil
}

// listPage issues one listing request. Pages beyond the first are not
// followed; a truncated response is logged.
func (fs *FileSystem) listPage(ctx context.Context, in types.ListInput) (*types.ListOutput, error) {
	in.MaxKeys = fs.maxKeys
	out, err := fs.backend.ListObjectsV2(ctx, in)
	if err != nil {
		return nil, err
	}
	if out.IsTruncated {
		fs.log.With().
			Str("prefix", in.Prefix).
			Int("returned", len(out.Objects)+len(out.CommonPrefixes)).
			Logger().Warn("listing truncated to first page")
	}
	return out, nil
}

// fillStorageFile builds the FsPath for a listed object. An object is
// classified as a directory when its key, relative to its parent's prefix,
// still contains a separator, as for "folder/" placeholder objects.
func (fs *FileSystem) fillStorageFile(obj types.ObjectSummary) FsPath {
	fp := FsPath{
		Path:  pathutil.ToPath(obj.Key),
		Owner: obj.Owner,
	}
	if !obj.LastModified.IsZero() {
		fp.ModificationTime = obj.LastModified.UnixMilli()
	}

	parent := pathutil.ToPrefix(pathutil.Parent(fp.LocalPath()))
	if !strings.HasPrefix(obj.Key, parent) {
		fs.log.With().Str("key", obj.Key).Logger().Warn("failed to fill storage file")
	} else {
		fp.IsDir = strings.Contains(obj.Key[len(parent):], pathutil.Separator)
	}

	if !fp.IsDir {
		fp.Length = obj.Size
	}
	return fp
}
