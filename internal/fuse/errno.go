package fuse

import (
	"syscall"

	"github.com/s3fs-fuse/s3storage/internal/errs"
)

// toErrno maps a filesystem error onto the errno returned to the kernel.
func toErrno(err error) error {
	if err == nil {
		return nil
	}
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		return syscall.ENOENT
	case errs.KindAccessDenied:
		return syscall.EACCES
	case errs.KindUsage:
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}
