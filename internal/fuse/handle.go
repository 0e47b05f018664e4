package fuse

import (
	"context"
	"io"
	"sync"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/s3fs-fuse/s3storage/internal/s3fs"
)

// Handle is an open file. Read-only handles load the object on first read;
// writable handles own an s3fs.Writer that accepts sequential writes and
// uploads on flush.
type Handle struct {
	file   *File
	writer *s3fs.Writer

	mu     sync.Mutex
	data   []byte
	loaded bool
}

var _ fs.Handle = (*Handle)(nil)
var _ fs.HandleReader = (*Handle)(nil)
var _ fs.HandleWriter = (*Handle)(nil)
var _ fs.HandleFlusher = (*Handle)(nil)
var _ fs.HandleReleaser = (*Handle)(nil)

// Read serves a byte range of the object.
func (h *Handle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.loaded {
		rc, err := h.file.root.fsys.Read(ctx, h.file.path)
		if err != nil {
			return toErrno(err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return syscall.EIO
		}
		h.data = data
		h.loaded = true
	}

	if req.Offset >= int64(len(h.data)) {
		resp.Data = nil
		return nil
	}
	end := req.Offset + int64(req.Size)
	if end > int64(len(h.data)) {
		end = int64(len(h.data))
	}
	resp.Data = h.data[req.Offset:end]
	return nil
}

// Write appends req.Data. Only writes at the current end of the buffer are
// accepted.
func (h *Handle) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.writer == nil {
		return syscall.EBADF
	}
	if req.Offset != int64(h.writer.Len()) {
		return syscall.ENOTSUP
	}
	n, err := h.writer.Write(req.Data)
	if err != nil {
		return toErrno(err)
	}
	resp.Size = n
	h.file.size = int64(h.writer.Len())
	h.file.mtime = time.Now()
	return nil
}

// Flush uploads buffered writes.
func (h *Handle) Flush(ctx context.Context, req *fuse.FlushRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.writer == nil {
		return nil
	}
	if err := h.writer.CloseContext(ctx); err != nil {
		h.file.root.log.ErrorErr("upload failed", err, map[string]string{"path": h.file.path})
		return toErrno(err)
	}
	return nil
}

// Release uploads anything not yet flushed.
func (h *Handle) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	return h.Flush(ctx, nil)
}
