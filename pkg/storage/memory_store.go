package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
)

// MemoryStore keeps objects in-process. References use the mem:// scheme.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// Put reads exactly size bytes from r.
func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return fmt.Errorf("read object: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("put object: short read %d of %d bytes", len(data), size)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{data: data, contentType: contentType}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) URL(key string) string {
	return (&url.URL{Scheme: "mem", Host: "covers", Path: "/" + key}).String()
}

// Get returns a stored object's bytes and content type.
func (s *MemoryStore) Get(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj.data, obj.contentType, ok
}
