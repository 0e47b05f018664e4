package s3client

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/s3fs-fuse/s3storage/internal/errs"
	"github.com/s3fs-fuse/s3storage/internal/storage/types"
)

// Operation names accepted by MockClient.FailWith.
const (
	OpPut           = "put"
	OpGet           = "get"
	OpList          = "list"
	OpExists        = "exists"
	OpCopy          = "copy"
	OpDelete        = "delete"
	OpDeleteObjects = "delete_objects"
)

// MockClient is an in-memory implementation of types.Backend for unit tests.
// Listings honour prefix, delimiter, MaxKeys and continuation tokens the way
// S3 does, in lexicographic key order.
type MockClient struct {
	bucket  string
	region  string
	objects map[string]*MockObject
	faults  []fault
	calls   []string
	mu      sync.RWMutex
}

// MockObject represents a mock S3 object
type MockObject struct {
	Key          string
	Data         []byte
	Metadata     map[string]string
	Size         int64
	LastModified time.Time
	Owner        string
}

type fault struct {
	op     string
	prefix string
	err    error
}

var _ types.Backend = (*MockClient)(nil)

// NewMockClient creates a new mock S3 client
func NewMockClient(bucket, region string) *MockClient {
	return &MockClient{
		bucket:  bucket,
		region:  region,
		objects: make(map[string]*MockObject),
	}
}

// FailWith makes every op whose key (or list prefix) starts with keyPrefix
// fail with err. Later registrations are checked first.
func (m *MockClient) FailWith(op, keyPrefix string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = append([]fault{{op: op, prefix: keyPrefix, err: err}}, m.faults...)
}

// ClearFaults removes every injected failure.
func (m *MockClient) ClearFaults() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = nil
}

// Calls returns the "op key" log of every request made so far.
func (m *MockClient) Calls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.calls...)
}

// Keys returns every stored key in sorted order.
func (m *MockClient) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedKeys()
}

// Object returns a stored object, or nil.
func (m *MockClient) Object(key string) *MockObject {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects[key]
}

// record logs a call and returns the injected failure for it, if any.
// Callers must hold m.mu for writing.
func (m *MockClient) record(op, key string) error {
	m.calls = append(m.calls, op+" "+key)
	for _, f := range m.faults {
		if f.op == op && strings.HasPrefix(key, f.prefix) {
			return f.err
		}
	}
	return nil
}

func (m *MockClient) sortedKeys() []string {
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Bucket returns the bound bucket name.
func (m *MockClient) Bucket() string {
	return m.bucket
}

// ListObjectsV2 lists objects with the given prefix and delimiter
func (m *MockClient) ListObjectsV2(ctx context.Context, in types.ListInput) (*types.ListOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(OpList, in.Prefix); err != nil {
		return nil, err
	}

	pager := types.NewPager(in)
	for _, key := range m.sortedKeys() {
		obj := m.objects[key]
		if !pager.Add(types.ObjectSummary{
			Key:          key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			Owner:        obj.Owner,
		}) {
			break
		}
	}
	return pager.Output(), nil
}

// GetObject retrieves an object
func (m *MockClient) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(OpGet, key); err != nil {
		return nil, err
	}
	obj, exists := m.objects[key]
	if !exists {
		return nil, errs.New(errs.KindNotFound, "object not found", key)
	}

	data := make([]byte, len(obj.Data))
	copy(data, obj.Data)
	return io.NopCloser(bytes.NewReader(data)), nil
}

// PutObject uploads an object with metadata
func (m *MockClient) PutObject(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(OpPut, key); err != nil {
		return err
	}

	objData := make([]byte, len(data))
	copy(objData, data)

	objMetadata := make(map[string]string, len(metadata))
	for k, v := range metadata {
		objMetadata[k] = v
	}

	m.objects[key] = &MockObject{
		Key:          key,
		Data:         objData,
		Metadata:     objMetadata,
		Size:         int64(len(data)),
		LastModified: time.Now(),
	}
	return nil
}

// DoesObjectExist reports whether key is stored.
func (m *MockClient) DoesObjectExist(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(OpExists, key); err != nil {
		return false, err
	}
	_, exists := m.objects[key]
	return exists, nil
}

// CopyObject copies an object, keeping its metadata.
func (m *MockClient) CopyObject(ctx context.Context, sourceKey, destKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(OpCopy, sourceKey); err != nil {
		return err
	}
	sourceObj, exists := m.objects[sourceKey]
	if !exists {
		return errs.New(errs.KindNotFound, "source object not found", sourceKey)
	}

	destData := make([]byte, len(sourceObj.Data))
	copy(destData, sourceObj.Data)
	destMetadata := make(map[string]string, len(sourceObj.Metadata))
	for k, v := range sourceObj.Metadata {
		destMetadata[k] = v
	}

	m.objects[destKey] = &MockObject{
		Key:          destKey,
		Data:         destData,
		Metadata:     destMetadata,
		Size:         sourceObj.Size,
		LastModified: time.Now(),
		Owner:        sourceObj.Owner,
	}
	return nil
}

// DeleteObject deletes an object
func (m *MockClient) DeleteObject(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(OpDelete, key); err != nil {
		return err
	}
	delete(m.objects, key)
	return nil
}

// DeleteObjects deletes every key in one call. Faults are matched against
// each key; the first match rejects the whole batch.
func (m *MockClient) DeleteObjects(ctx context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, OpDeleteObjects+" "+strings.Join(keys, ","))
	for _, key := range keys {
		for _, f := range m.faults {
			if f.op == OpDeleteObjects && strings.HasPrefix(key, f.prefix) {
				return f.err
			}
		}
	}
	for _, key := range keys {
		delete(m.objects, key)
	}
	return nil
}

// SetOwner sets the owner display name reported for key by listings.
func (m *MockClient) SetOwner(key, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if obj, ok := m.objects[key]; ok {
		obj.Owner = owner
	}
}

// Close is a no-op.
func (m *MockClient) Close() error {
	return nil
}
