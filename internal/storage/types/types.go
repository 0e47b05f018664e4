// Package types defines the flat object-store contract consumed by the
// filesystem layer. Every provider (S3, MinIO, PostgreSQL, MongoDB and the
// in-memory mock) implements Backend.
package types

import (
	"context"
	"io"
	"time"
)

// DefaultMaxKeys is the page size used when ListInput.MaxKeys is zero.
const DefaultMaxKeys = 1000

// ObjectSummary describes one object returned by a listing.
type ObjectSummary struct {
	Key          string
	Size         int64
	LastModified time.Time
	// Owner is the owner display name; empty when the store does not report one.
	Owner string
}

// ListInput controls a single ListObjectsV2 request.
type ListInput struct {
	Prefix string
	// Delimiter groups keys into common prefixes. Empty means a deep listing.
	Delimiter         string
	ContinuationToken string
	MaxKeys           int32
}

// ListOutput is one page of a listing.
type ListOutput struct {
	Objects        []ObjectSummary
	CommonPrefixes []string

	IsTruncated           bool
	NextContinuationToken string
}

// Backend is a flat key/value blob store bound to a single bucket.
//
// Implementations return *errs.Error values so callers can distinguish
// missing keys, authorization failures and transport failures.
type Backend interface {
	// Bucket returns the bucket (or namespace) this backend is bound to.
	Bucket() string

	// PutObject stores data as the full content of key, replacing any prior object.
	PutObject(ctx context.Context, key string, data []byte, metadata map[string]string) error

	// GetObject opens the content of key. The caller must close the reader.
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)

	// ListObjectsV2 returns one page of objects and common prefixes.
	ListObjectsV2(ctx context.Context, in ListInput) (*ListOutput, error)

	// DoesObjectExist reports whether an object is stored at exactly key.
	DoesObjectExist(ctx context.Context, key string) (bool, error)

	// CopyObject copies srcKey to dstKey within the bound bucket.
	CopyObject(ctx context.Context, srcKey, dstKey string) error

	// DeleteObject removes key. Removing a missing key is not an error.
	DeleteObject(ctx context.Context, key string) error

	// DeleteObjects removes every key in one logical batch. An empty batch is a no-op.
	DeleteObjects(ctx context.Context, keys []string) error

	// Close releases network clients or connection pools.
	Close() error
}
