package minio

import (
	"context"
	"errors"
	"net/http"

	miniogo "github.com/minio/minio-go/v7"

	"github.com/s3fs-fuse/s3storage/internal/errs"
)

// mapError translates a MinIO SDK error into a *errs.Error.
func mapError(err error, msg string, keys ...string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.KindIO, msg, err, keys...)
	}

	resp := miniogo.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchBucket", "NoSuchKey":
		return errs.Wrap(errs.KindNotFound, msg, err, keys...)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return errs.Wrap(errs.KindAccessDenied, msg, err, keys...)
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return errs.Wrap(errs.KindNotFound, msg, err, keys...)
	case http.StatusForbidden, http.StatusUnauthorized:
		return errs.Wrap(errs.KindAccessDenied, msg, err, keys...)
	}

	return errs.Wrap(errs.KindIO, msg, err, keys...)
}
