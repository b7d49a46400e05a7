package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryStorage keeps objects in process memory for local runs without a bucket.
type MemoryStorage struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string][]byte
}

func NewMemoryStorage(bucket string) *MemoryStorage {
	return &MemoryStorage{
		bucket:  bucket,
		objects: make(map[string][]byte),
	}
}

func (m *MemoryStorage) Put(ctx context.Context, objectName, contentType string, data io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.objects[objectName] = buf.Bytes()
	m.mu.Unlock()

	return PublicURL(m.bucket, objectName), nil
}

func (m *MemoryStorage) Object(objectName string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[objectName]
	return b, ok
}

func (m *MemoryStorage) Close() error { return nil }
