// Package fuse mounts an s3fs.FileSystem through bazil.org/fuse.
//
// Directories are key prefixes, so they have no stored attributes; files
// report the size and modification time of their object. Writes are
// buffered per open handle and uploaded as a whole object on flush.
package fuse

import (
	"context"
	"os"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/s3fs-fuse/s3storage/internal/logger"
	"github.com/s3fs-fuse/s3storage/internal/pathutil"
	"github.com/s3fs-fuse/s3storage/internal/s3fs"
)

const (
	dirMode  os.FileMode = os.ModeDir | 0755
	fileMode os.FileMode = 0644

	blockSize = 4096
	maxName   = 1024
)

// FuseFS implements the fuse.FS interface
type FuseFS struct {
	fsys *s3fs.FileSystem
	log  *logger.Logger
	uid  uint32
	gid  uint32
}

var _ fs.FS = (*FuseFS)(nil)
var _ fs.FSStatfser = (*FuseFS)(nil)

// NewFuseFS exposes fsys as a FUSE filesystem owned by the current user.
func NewFuseFS(fsys *s3fs.FileSystem, log *logger.Logger) *FuseFS {
	if log == nil {
		log = logger.Nop()
	}
	return &FuseFS{
		fsys: fsys,
		log:  log,
		uid:  uint32(os.Getuid()),
		gid:  uint32(os.Getgid()),
	}
}

// Root returns the root directory
func (f *FuseFS) Root() (fs.Node, error) {
	return &Dir{root: f, path: f.fsys.ListRoot()}, nil
}

// Statfs reports the capacity of the store, which object stores leave at zero.
func (f *FuseFS) Statfs(ctx context.Context, req *fuse.StatfsRequest, resp *fuse.StatfsResponse) error {
	root := f.fsys.ListRoot()
	resp.Blocks = uint64(f.fsys.TotalSpace(root)) / blockSize
	resp.Bfree = uint64(f.fsys.FreeSpace(root)) / blockSize
	resp.Bavail = uint64(f.fsys.UsableSpace(root)) / blockSize
	resp.Bsize = blockSize
	resp.Frsize = blockSize
	resp.Namelen = maxName
	return nil
}

func (f *FuseFS) attr(a *fuse.Attr, mode os.FileMode, size int64, mtime time.Time) {
	a.Mode = mode
	a.Size = uint64(size)
	a.Mtime = mtime
	a.Ctime = mtime
	a.Uid = f.uid
	a.Gid = f.gid
	a.BlockSize = blockSize
	a.Blocks = (uint64(size) + 511) / 512
}

func childPath(dir, name string) string {
	if dir == pathutil.Separator {
		return dir + name
	}
	return dir + pathutil.Separator + name
}

// Dir represents a directory node
type Dir struct {
	root *FuseFS
	path string
}

var _ fs.Node = (*Dir)(nil)
var _ fs.NodeStringLookuper = (*Dir)(nil)
var _ fs.HandleReadDirAller = (*Dir)(nil)
var _ fs.NodeMkdirer = (*Dir)(nil)
var _ fs.NodeCreater = (*Dir)(nil)
var _ fs.NodeRemover = (*Dir)(nil)
var _ fs.NodeRenamer = (*Dir)(nil)

// Attr returns directory attributes
func (d *Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	d.root.attr(a, dirMode, 0, time.Time{})
	return nil
}

// Lookup finds name among the direct children of d, including directories
// that only hold a marker.
func (d *Dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	res, err := d.root.fsys.ListDir(ctx, d.path, false)
	if err != nil {
		return nil, toErrno(err)
	}

	p := childPath(d.path, name)
	for _, entry := range res.Paths {
		if d.isSelf(entry) || entry.Name() != name {
			continue
		}
		if entry.IsDir {
			return &Dir{root: d.root, path: p}, nil
		}
		return &File{root: d.root, path: p, size: entry.Length, mtime: entry.ModTime()}, nil
	}
	return nil, syscall.ENOENT
}

// ReadDirAll reads all directory entries
func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	res, err := d.root.fsys.ListPathWithError(ctx, d.path)
	if err != nil {
		return nil, toErrno(err)
	}

	seen := make(map[string]bool, len(res.Paths))
	dirents := make([]fuse.Dirent, 0, len(res.Paths))
	for _, entry := range res.Paths {
		name := entry.Name()
		if d.isSelf(entry) || seen[name] {
			continue
		}
		seen[name] = true

		dirent := fuse.Dirent{Name: name, Type: fuse.DT_File}
		if entry.IsDir {
			dirent.Type = fuse.DT_Dir
		}
		dirents = append(dirents, dirent)
	}
	return dirents, nil
}

// isSelf reports whether entry is a "folder/" placeholder object for d
// itself rather than one of its children.
func (d *Dir) isSelf(entry s3fs.FsPath) bool {
	return entry.LocalPath() == d.path+pathutil.Separator
}

// Mkdir creates a new directory
func (d *Dir) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fs.Node, error) {
	p := childPath(d.path, req.Name)
	created, err := d.root.fsys.Mkdir(ctx, p)
	if err != nil {
		return nil, toErrno(err)
	}
	if !created {
		return nil, syscall.EEXIST
	}
	return &Dir{root: d.root, path: p}, nil
}

// Create creates an empty object and opens it for writing.
func (d *Dir) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fs.Node, fs.Handle, error) {
	p := childPath(d.path, req.Name)
	created, err := d.root.fsys.Create(ctx, p)
	if err != nil {
		return nil, nil, toErrno(err)
	}
	if !created && req.Flags&fuse.OpenExclusive != 0 {
		return nil, nil, syscall.EEXIST
	}

	w, err := d.root.fsys.Write(ctx, p, true)
	if err != nil {
		return nil, nil, toErrno(err)
	}
	file := &File{root: d.root, path: p, mtime: time.Now()}
	return file, &Handle{file: file, writer: w}, nil
}

// Remove deletes a file object, or an empty directory together with its
// marker. A directory with any other entry is left untouched.
func (d *Dir) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	p := childPath(d.path, req.Name)
	if req.Dir {
		child := &Dir{root: d.root, path: p}
		res, err := d.root.fsys.ListDir(ctx, p, true)
		if err != nil {
			return toErrno(err)
		}
		for _, entry := range res.Paths {
			if !child.isSelf(entry) {
				return syscall.ENOTEMPTY
			}
		}
		_, err = d.root.fsys.Delete(ctx, p+pathutil.Separator)
		return toErrno(err)
	}

	plan := &s3fs.Plan{
		Op:    "unlink",
		Steps: []s3fs.Step{{Action: s3fs.ActionDelete, Key: pathutil.ToKeyExact(p)}},
	}
	return toErrno(d.root.fsys.Execute(ctx, plan))
}

// Rename moves a file object, or every object under a directory.
func (d *Dir) Rename(ctx context.Context, req *fuse.RenameRequest, newDir fs.Node) error {
	target, ok := newDir.(*Dir)
	if !ok {
		return syscall.EINVAL
	}
	oldPath := childPath(d.path, req.OldName)
	newPath := childPath(target.path, req.NewName)

	node, err := d.Lookup(ctx, req.OldName)
	if err != nil {
		return err
	}
	if _, isDir := node.(*Dir); isDir {
		_, err := d.root.fsys.RenameTo(ctx, oldPath+pathutil.Separator, newPath+pathutil.Separator)
		return toErrno(err)
	}

	oldKey, newKey := pathutil.ToKeyExact(oldPath), pathutil.ToKeyExact(newPath)
	plan := &s3fs.Plan{
		Op: "rename",
		Steps: []s3fs.Step{
			{Action: s3fs.ActionCopy, Key: oldKey, DestKey: newKey},
			{Action: s3fs.ActionDelete, Key: oldKey},
		},
	}
	return toErrno(d.root.fsys.Execute(ctx, plan))
}

// File represents a file node
type File struct {
	root  *FuseFS
	path  string
	size  int64
	mtime time.Time
}

var _ fs.Node = (*File)(nil)
var _ fs.NodeOpener = (*File)(nil)
var _ fs.NodeSetattrer = (*File)(nil)

// Attr returns file attributes
func (f *File) Attr(ctx context.Context, a *fuse.Attr) error {
	f.root.attr(a, fileMode, f.size, f.mtime)
	return nil
}

// Open opens a handle. Writable handles start from the current content
// unless the open truncates.
func (f *File) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	if req.Flags.IsReadOnly() {
		return &Handle{file: f}, nil
	}
	truncate := req.Flags&fuse.OpenTruncate != 0
	w, err := f.root.fsys.Write(ctx, f.path, truncate)
	if err != nil {
		return nil, toErrno(err)
	}
	resp.Flags |= fuse.OpenDirectIO
	return &Handle{file: f, writer: w}, nil
}

// Setattr supports truncation to zero only; objects cannot be resized in place.
func (f *File) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if req.Valid.Size() {
		if req.Size != 0 {
			return syscall.ENOTSUP
		}
		w, err := f.root.fsys.Write(ctx, f.path, true)
		if err != nil {
			return toErrno(err)
		}
		if err := w.Close(); err != nil {
			return toErrno(err)
		}
		f.size = 0
		f.mtime = time.Now()
	}
	f.root.attr(&resp.Attr, fileMode, f.size, f.mtime)
	return nil
}

// Mount serves fsys at mountpoint until ctx is cancelled or the filesystem
// is unmounted.
func Mount(ctx context.Context, mountpoint string, fsys *s3fs.FileSystem, log *logger.Logger) error {
	ffs := NewFuseFS(fsys, log)
	c, err := fuse.Mount(
		mountpoint,
		fuse.FSName("s3fs"),
		fuse.Subtype("s3storage"),
	)
	if err != nil {
		ffs.log.ErrorErr("mount failed", err, map[string]string{"mountpoint": mountpoint})
		return err
	}
	defer c.Close()

	ffs.log.With().Str("mountpoint", mountpoint).Str("bucket", fsys.Bucket()).Logger().Info("mounted filesystem")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			if err := fuse.Unmount(mountpoint); err != nil {
				ffs.log.WarnErr("unmount failed", err, map[string]string{"mountpoint": mountpoint})
			}
		case <-done:
		}
	}()

	if err := fs.Serve(c, ffs); err != nil {
		ffs.log.ErrorErr("serve failed", err, map[string]string{"mountpoint": mountpoint})
		return err
	}
	return nil
}
