package s3client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/s3fs-fuse/s3storage/internal/credentials"
	"github.com/s3fs-fuse/s3storage/internal/errs"
	"github.com/s3fs-fuse/s3storage/internal/storage/types"
)

// maxDeleteBatch is the per-request key limit of DeleteObjects.
const maxDeleteBatch = 1000

// Client is an S3 implementation of types.Backend bound to one bucket.
// It is safe for concurrent use.
type Client struct {
	bucket   string
	region   string
	endpoint string
	creds    *credentials.Credentials
	s3Client *s3.Client
}

var _ types.Backend = (*Client)(nil)

// NewClient creates a new S3 client
func NewClient(bucket, region string, creds *credentials.Credentials) *Client {
	return NewClientWithEndpoint(bucket, region, "", creds)
}

// NewClientWithEndpoint creates a new S3 client with custom endpoint.
// Custom endpoints use path-style addressing so S3-compatible services
// (LocalStack, Ceph, MinIO gateways) resolve the bucket correctly.
//
// If the client cannot be configured it is returned unconnected and every
// request fails with a configuration error. Use Connect to see the cause.
func NewClientWithEndpoint(bucket, region, endpoint string, creds *credentials.Credentials) *Client {
	client, _ := Connect(context.Background(), bucket, region, endpoint, creds)
	return client
}

// Connect is NewClientWithEndpoint that reports missing credentials or a
// failure to load the AWS configuration as a configuration error. The
// returned client is never nil.
func Connect(ctx context.Context, bucket, region, endpoint string, creds *credentials.Credentials) (*Client, error) {
	client := &Client{
		bucket:   bucket,
		region:   region,
		endpoint: endpoint,
		creds:    creds,
	}
	if creds == nil || !creds.IsValid() {
		return client, errs.New(errs.KindConfiguration, "missing S3 credentials", bucket)
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(
			creds.AccessKeyID,
			creds.SecretAccessKey,
			creds.SessionToken,
		)),
	)
	if err != nil {
		return client, errs.Wrap(errs.KindConfiguration, "failed to load AWS config", err, bucket)
	}

	s3Options := []func(*s3.Options){}
	if endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	client.s3Client = s3.NewFromConfig(cfg, s3Options...)
	return client, nil
}

func (c *Client) ready() error {
	if c.s3Client == nil {
		return errs.New(errs.KindConfiguration, "S3 client not initialized")
	}
	return nil
}

// Bucket returns the bound bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// ListObjectsV2 returns one page of objects and common prefixes under in.Prefix.
func (c *Client) ListObjectsV2(ctx context.Context, in types.ListInput) (*types.ListOutput, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	maxKeys := in.MaxKeys
	if maxKeys <= 0 {
		maxKeys = types.DefaultMaxKeys
	}
	input := &s3.ListObjectsV2Input{
		Bucket:     aws.String(c.bucket),
		Prefix:     aws.String(in.Prefix),
		MaxKeys:    aws.Int32(maxKeys),
		FetchOwner: aws.Bool(true),
	}
	if in.Delimiter != "" {
		input.Delimiter = aws.String(in.Delimiter)
	}
	if in.ContinuationToken != "" {
		input.ContinuationToken = aws.String(in.ContinuationToken)
	}

	result, err := c.s3Client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, mapError(err, "failed to list objects", in.Prefix)
	}

	out := &types.ListOutput{
		Objects:               make([]types.ObjectSummary, 0, len(result.Contents)),
		CommonPrefixes:        make([]string, 0, len(result.CommonPrefixes)),
		IsTruncated:           aws.ToBool(result.IsTruncated),
		NextContinuationToken: aws.ToString(result.NextContinuationToken),
	}
	for _, obj := range result.Contents {
		if obj.Key == nil {
			continue
		}
		summary := types.ObjectSummary{
			Key:          *obj.Key,
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
		}
		if obj.Owner != nil {
			summary.Owner = aws.ToString(obj.Owner.DisplayName)
		}
		out.Objects = append(out.Objects, summary)
	}
	for _, p := range result.CommonPrefixes {
		if p.Prefix != nil {
			out.CommonPrefixes = append(out.CommonPrefixes, *p.Prefix)
		}
	}

	return out, nil
}

// GetObject opens the content of key. The caller must close the body.
func (c *Client) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to get object", key)
	}

	return result.Body, nil
}

// PutObject uploads data as the full content of key.
func (c *Client) PutObject(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	if err := c.ready(); err != nil {
		return err
	}

	// AWS SDK expects metadata keys WITHOUT "x-amz-meta-" prefix
	cleanMetadata := make(map[string]string, len(metadata))
	const metaPrefix = "x-amz-meta-"
	for k, v := range metadata {
		cleanMetadata[strings.TrimPrefix(k, metaPrefix)] = v
	}

	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata:      cleanMetadata,
	})
	if err != nil {
		return mapError(err, "failed to put object", key)
	}

	return nil
}

// DoesObjectExist reports whether an object is stored at exactly key.
func (c *Client) DoesObjectExist(ctx context.Context, key string) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}

	_, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		mapped := mapError(err, "failed to head object", key)
		if mapped.Kind == errs.KindNotFound {
			return false, nil
		}
		return false, mapped
	}

	return true, nil
}

// CopyObject copies srcKey to dstKey within the bound bucket.
func (c *Client) CopyObject(ctx context.Context, srcKey, dstKey string) error {
	if err := c.ready(); err != nil {
		return err
	}

	_, err := c.s3Client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(c.bucket, srcKey)),
	})
	if err != nil {
		return mapError(err, "failed to copy object", srcKey, dstKey)
	}

	return nil
}

// DeleteObject deletes an object from S3
func (c *Client) DeleteObject(ctx context.Context, key string) error {
	if err := c.ready(); err != nil {
		return err
	}

	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapError(err, "failed to delete object", key)
	}

	return nil
}

// DeleteObjects removes keys in as few requests as the service allows.
// Per-key failures reported in the response are surfaced as errors.
func (c *Client) DeleteObjects(ctx context.Context, keys []string) error {
	if err := c.ready(); err != nil {
		return err
	}

	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := start + maxDeleteBatch
		if end > len(keys) {
			end = len(keys)
		}

		ids := make([]s3types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, s3types.ObjectIdentifier{Key: aws.String(k)})
		}

		result, err := c.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucket),
			Delete: &s3types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return mapError(err, "failed to delete objects", keys[start:end]...)
		}
		if len(result.Errors) > 0 {
			first := result.Errors[0]
			cause := fmt.Errorf("%s: %s", aws.ToString(first.Code), aws.ToString(first.Message))
			return errs.Wrap(kindForCode(aws.ToString(first.Code), errs.KindIO),
				fmt.Sprintf("failed to delete %d of %d objects", len(result.Errors), end-start),
				cause, aws.ToString(first.Key))
		}
	}

	return nil
}

// CreateBucket creates the bound bucket.
func (c *Client) CreateBucket(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}

	_, err := c.s3Client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return mapError(err, "failed to create bucket", c.bucket)
	}

	return nil
}

// Close is a no-op: the SDK client holds no resources needing release.
func (c *Client) Close() error {
	return nil
}

// copySource builds the URL-encoded "bucket/key" value CopyObject expects.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segments, "/")
}
