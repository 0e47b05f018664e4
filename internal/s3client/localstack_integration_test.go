//go:build integration

package s3client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/s3fs-fuse/s3storage/internal/credentials"
	"github.com/s3fs-fuse/s3storage/internal/storage/types"
)

const (
	localstackEndpoint = "http://localhost:4566"
	localstackBucket   = "test-bucket-localstack"
	localstackRegion   = "us-east-1"
)

// isLocalStackAvailable checks if LocalStack is running
func isLocalStackAvailable() bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(localstackEndpoint + "/_localstack/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == 200
}

// setupLocalStackTest sets up LocalStack test environment
func setupLocalStackTest(t *testing.T) *Client {
	if !isLocalStackAvailable() {
		t.Skip("LocalStack is not available. Start it with: docker-compose -f docker-compose.localstack.yml up -d")
	}

	creds := credentials.NewCredentials()
	creds.AccessKeyID = "test"
	creds.SecretAccessKey = "test"

	client := NewClientWithEndpoint(localstackBucket, localstackRegion, localstackEndpoint, creds)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.ListObjectsV2(ctx, types.ListInput{}); err != nil {
		err = client.CreateBucket(ctx)
		if err != nil &&
			!strings.Contains(err.Error(), "BucketAlreadyOwnedByYou") &&
			!strings.Contains(err.Error(), "BucketAlreadyExists") {
			t.Fatalf("Failed to create bucket: %v", err)
		}
		time.Sleep(500 * time.Millisecond)
	}

	return client
}

func TestLocalStackPutGet(t *testing.T) {
	client := setupLocalStackTest(t)
	ctx := context.Background()

	key := fmt.Sprintf("it-put-get-%d/file.txt", time.Now().UnixNano())
	if err := client.PutObject(ctx, key, []byte("hello"), nil); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}
	defer client.DeleteObject(ctx, key)

	body, err := client.GetObject(ctx, key)
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "hello" {
		t.Errorf("Expected 'hello', got '%s'", string(data))
	}

	ok, err := client.DoesObjectExist(ctx, key)
	if err != nil || !ok {
		t.Errorf("Expected object to exist, got %v, %v", ok, err)
	}
	ok, err = client.DoesObjectExist(ctx, key+".missing")
	if err != nil || ok {
		t.Errorf("Expected missing object, got %v, %v", ok, err)
	}
}

func TestLocalStackDelimiterListing(t *testing.T) {
	client := setupLocalStackTest(t)
	ctx := context.Background()

	root := fmt.Sprintf("it-list-%d/", time.Now().UnixNano())
	keys := []string{root + "b/x", root + "b/y", root + "c/z", root + "top.txt"}
	for _, k := range keys {
		if err := client.PutObject(ctx, k, []byte("x"), nil); err != nil {
			t.Fatalf("PutObject %s failed: %v", k, err)
		}
	}
	defer client.DeleteObjects(ctx, keys)

	out, err := client.ListObjectsV2(ctx, types.ListInput{Prefix: root, Delimiter: "/"})
	if err != nil {
		t.Fatalf("ListObjectsV2 failed: %v", err)
	}
	if len(out.CommonPrefixes) != 2 {
		t.Errorf("Expected 2 common prefixes, got %v", out.CommonPrefixes)
	}
	if len(out.Objects) != 1 || out.Objects[0].Key != root+"top.txt" {
		t.Errorf("Expected only top.txt, got %+v", out.Objects)
	}
}

func TestLocalStackCopyAndBatchDelete(t *testing.T) {
	client := setupLocalStackTest(t)
	ctx := context.Background()

	src := fmt.Sprintf("it-copy-%d/with space.txt", time.Now().UnixNano())
	dst := src + ".copy"
	if err := client.PutObject(ctx, src, []byte("payload"), nil); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}
	if err := client.CopyObject(ctx, src, dst); err != nil {
		t.Fatalf("CopyObject failed: %v", err)
	}
	if err := client.DeleteObjects(ctx, []string{src, dst}); err != nil {
		t.Fatalf("DeleteObjects failed: %v", err)
	}
	for _, k := range []string{src, dst} {
		if ok, _ := client.DoesObjectExist(ctx, k); ok {
			t.Errorf("Expected %s to be deleted", k)
		}
	}
	if err := client.DeleteObjects(ctx, nil); err != nil {
		t.Errorf("Empty batch delete should be a no-op, got %v", err)
	}
}
