package s3fs

import (
	"bytes"
	"context"
	"sync"

	"github.com/s3fs-fuse/s3storage/internal/errs"
	"github.com/s3fs-fuse/s3storage/internal/storage/types"
)

// Writer buffers written bytes in memory and uploads them as the full
// content of its key on Close. A Writer is owned by a single writer and is
// not safe for concurrent use.
//
// Close uploads with the context passed to FileSystem.Write. Callers whose
// open context may end before the upload, such as a FUSE request, should
// call CloseContext instead.
type Writer struct {
	ctx     context.Context // used by Close only
	backend types.Backend
	key     string
	buf     bytes.Buffer

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

func newWriter(ctx context.Context, backend types.Backend, key string) *Writer {
	return &Writer{ctx: ctx, backend: backend, key: key}
}

// Key returns the destination key.
func (w *Writer) Key() string {
	return w.key
}

// Len returns the number of buffered bytes.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Write appends p to the buffer.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errs.New(errs.KindUsage, "write to closed writer", w.key)
	}
	return w.buf.Write(p)
}

// Close uploads the buffered bytes with a single put, replacing any prior
// content of the key. Later calls return the first result without uploading
// again.
func (w *Writer) Close() error {
	return w.CloseContext(w.ctx)
}

// CloseContext is Close with the upload bound to ctx instead of the context
// the Writer was opened with.
func (w *Writer) CloseContext(ctx context.Context) error {
	w.closeOnce.Do(func() {
		w.closed = true
		if err := w.backend.PutObject(ctx, w.key, w.buf.Bytes(), nil); err != nil {
			w.closeErr = storeError(err, "failed to upload", w.key)
		}
	})
	return w.closeErr
}
