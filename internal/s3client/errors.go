package s3client

import (
	"context"
	"errors"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/s3fs-fuse/s3storage/internal/errs"
)

// mapError translates an AWS SDK error into a *errs.Error.
func mapError(err error, msg string, keys ...string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.KindIO, msg, err, keys...)
	}

	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return errs.Wrap(errs.KindNotFound, msg, err, keys...)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if kind := kindForCode(apiErr.ErrorCode(), errs.KindUnknown); kind != errs.KindUnknown {
			return errs.Wrap(kind, msg, err, keys...)
		}
	}

	// HEAD responses carry no body, so only the status code is available
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusForbidden, http.StatusUnauthorized:
			return errs.Wrap(errs.KindAccessDenied, msg, err, keys...)
		case http.StatusNotFound:
			return errs.Wrap(errs.KindNotFound, msg, err, keys...)
		}
	}

	return errs.Wrap(errs.KindIO, msg, err, keys...)
}

// kindForCode maps an S3 error code to an error kind, or fallback when the
// code is not one that needs special handling.
func kindForCode(code string, fallback errs.Kind) errs.Kind {
	switch code {
	case "AccessDenied", "AllAccessDisabled", "InvalidAccessKeyId",
		"SignatureDoesNotMatch", "Forbidden", "AccountProblem":
		return errs.KindAccessDenied
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return errs.KindNotFound
	}
	return fallback
}
