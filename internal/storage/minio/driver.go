// Package minio provides a MinIO implementation of types.Backend.
//
// Usage:
//
//	store, err := minio.New("http://localhost:9000", "minioadmin", "minioadmin", "us-east-1", "warehouse")
//	if err != nil { ... }
//	defer store.Close()
package minio

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/s3fs-fuse/s3storage/internal/errs"
	"github.com/s3fs-fuse/s3storage/internal/storage/types"
)

// Driver is a MinIO implementation of types.Backend.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
	bucket string
}

var _ types.Backend = (*Driver)(nil)

// New creates a Driver for bucket. endpoint may be a bare host:port or a
// URL; an https scheme enables TLS.
func New(endpoint, accessKey, secretKey, region, bucket string) (*Driver, error) {
	host, secure, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "invalid minio endpoint", err, endpoint)
	}

	client, err := miniogo.New(host, &miniogo.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "failed to create minio client", err, endpoint)
	}

	return &Driver{client: client, bucket: bucket}, nil
}

func splitEndpoint(endpoint string) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, false, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, err
	}
	return u.Host, u.Scheme == "https", nil
}

// Bucket returns the bound bucket name.
func (d *Driver) Bucket() string {
	return d.bucket
}

// Close is a no-op for MinIO; the SDK client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

// ListObjectsV2 returns one page of results. Only the "/" delimiter is
// supported, matching MinIO's non-recursive listing mode.
func (d *Driver) ListObjectsV2(ctx context.Context, in types.ListInput) (*types.ListOutput, error) {
	if in.Delimiter != "" && in.Delimiter != "/" {
		return nil, errs.New(errs.KindIO, "minio supports only the \"/\" delimiter", in.Delimiter)
	}

	maxKeys := int(in.MaxKeys)
	if maxKeys <= 0 {
		maxKeys = types.DefaultMaxKeys
	}

	// cancel stops the SDK's background lister once the page is full
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := &types.ListOutput{}
	count := 0
	for obj := range d.client.ListObjects(ctx, d.bucket, miniogo.ListObjectsOptions{
		Prefix:     in.Prefix,
		Recursive:  in.Delimiter == "",
		StartAfter: in.ContinuationToken,
	}) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list objects", in.Prefix)
		}
		if count == maxKeys {
			out.IsTruncated = true
			break
		}

		if in.Delimiter != "" && strings.HasSuffix(obj.Key, in.Delimiter) && obj.Size == 0 && obj.ETag == "" {
			out.CommonPrefixes = append(out.CommonPrefixes, obj.Key)
		} else {
			out.Objects = append(out.Objects, types.ObjectSummary{
				Key:          obj.Key,
				Size:         obj.Size,
				LastModified: obj.LastModified,
				Owner:        obj.Owner.DisplayName,
			})
		}
		out.NextContinuationToken = obj.Key
		count++
	}
	if !out.IsTruncated {
		out.NextContinuationToken = ""
	}

	return out, nil
}

// GetObject opens a streaming handle to the object at key.
// The caller MUST call Close() after reading.
func (d *Driver) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := d.client.GetObject(ctx, d.bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object", key)
	}

	// GetObject is lazy; Stat surfaces a missing key before the caller reads
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, mapError(err, "failed to stat object after get", key)
	}

	return obj, nil
}

// PutObject uploads data as the full content of key.
func (d *Driver) PutObject(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	_, err := d.client.PutObject(ctx, d.bucket, key, bytes.NewReader(data), int64(len(data)),
		miniogo.PutObjectOptions{UserMetadata: metadata})
	if err != nil {
		return mapError(err, "failed to put object", key)
	}
	return nil
}

// DoesObjectExist reports whether an object is stored at exactly key.
func (d *Driver) DoesObjectExist(ctx context.Context, key string) (bool, error) {
	_, err := d.client.StatObject(ctx, d.bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		mapped := mapError(err, "failed to stat object", key)
		if mapped.Kind == errs.KindNotFound {
			return false, nil
		}
		return false, mapped
	}
	return true, nil
}

// CopyObject copies srcKey to dstKey server-side.
func (d *Driver) CopyObject(ctx context.Context, srcKey, dstKey string) error {
	_, err := d.client.CopyObject(ctx,
		miniogo.CopyDestOptions{Bucket: d.bucket, Object: dstKey},
		miniogo.CopySrcOptions{Bucket: d.bucket, Object: srcKey},
	)
	if err != nil {
		return mapError(err, "failed to copy object", srcKey, dstKey)
	}
	return nil
}

// DeleteObject removes key.
func (d *Driver) DeleteObject(ctx context.Context, key string) error {
	if err := d.client.RemoveObject(ctx, d.bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return mapError(err, "failed to delete object", key)
	}
	return nil
}

// DeleteObjects removes keys using the batch RemoveObjects API.
func (d *Driver) DeleteObjects(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	objectsCh := make(chan miniogo.ObjectInfo, len(keys))
	for _, k := range keys {
		objectsCh <- miniogo.ObjectInfo{Key: k}
	}
	close(objectsCh)

	var first *errs.Error
	for rErr := range d.client.RemoveObjects(ctx, d.bucket, objectsCh, miniogo.RemoveObjectsOptions{}) {
		if rErr.Err != nil && first == nil {
			first = mapError(rErr.Err, "failed to delete objects", rErr.ObjectName)
		}
	}
	if first != nil {
		return first
	}
	return nil
}
