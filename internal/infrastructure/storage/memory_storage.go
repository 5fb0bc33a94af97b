package storage

import (
	"context"
	"slices"
	"sync"
)

// Object is a stored blob held by MemoryObjectStorage
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryObjectStorage keeps objects in process memory.
// Use it for local development when no S3 endpoint is configured.
type MemoryObjectStorage struct {
	// BaseURL prefixes the URLs returned by Upload
	BaseURL string

	mu      sync.RWMutex
	bucket  bool
	objects map[string]Object
}

// NewMemoryObjectStorage creates an empty in-memory storage
func NewMemoryObjectStorage() *MemoryObjectStorage {
	return &MemoryObjectStorage{
		BaseURL: "memory://" + DefaultBucket,
		objects: make(map[string]Object),
	}
}

// EnsureBucket marks the bucket as created on first call
func (m *MemoryObjectStorage) EnsureBucket(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bucket {
		return false, nil
	}
	m.bucket = true
	return true, nil
}

// Upload stores a copy of data
func (m *MemoryObjectStorage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", errKeyRequired
	}
	m.mu.Lock()
	m.objects[key] = Object{Data: slices.Clone(data), ContentType: contentType}
	m.mu.Unlock()
	return m.BaseURL + "/" + key, nil
}

// ObjectExists reports whether key was uploaded
func (m *MemoryObjectStorage) ObjectExists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errKeyRequired
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

// Get returns the stored object
func (m *MemoryObjectStorage) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj, ok
}
