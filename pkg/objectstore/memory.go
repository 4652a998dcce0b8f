package objectstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and single-node setups.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data     []byte
	etag     string
	modified time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("get %s: %w", key, ErrNotFound)
	}
	info := s.infoFor(key, obj)
	return io.NopCloser(bytes.NewReader(obj.data)), info, nil
}

func (s *MemoryStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("head %s: %w", key, ErrNotFound)
	}
	return s.infoFor(key, obj), nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, body io.Reader, size int64) (*ObjectInfo, error) {
	data, err := readBody(ctx, body, size)
	if err != nil {
		return nil, err
	}
	obj := memoryObject{data: data, etag: computeETag(data), modified: time.Now().UTC()}
	s.mu.Lock()
	s.objects[key] = obj
	s.mu.Unlock()
	return s.infoFor(key, obj), nil
}

func (s *MemoryStore) PutIfAbsent(ctx context.Context, key string, body io.Reader, size int64) (*ObjectInfo, error) {
	data, err := readBody(ctx, body, size)
	if err != nil {
		return nil, err
	}
	obj := memoryObject{data: data, etag: computeETag(data), modified: time.Now().UTC()}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[key]; exists {
		return nil, fmt.Errorf("put %s: %w", key, ErrAlreadyExists)
	}
	s.objects[key] = obj
	return s.infoFor(key, obj), nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("delete %s: %w", key, ErrNotFound)
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, opts *ListOptions) (*ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &ListOptions{}
	}
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	s.mu.RLock()
	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		if opts.Prefix != "" && !strings.HasPrefix(key, opts.Prefix) {
			continue
		}
		if opts.Marker != "" && key <= opts.Marker {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := &ListResult{}
	for _, key := range keys {
		if len(result.Objects) >= maxKeys {
			result.IsTruncated = true
			result.NextMarker = result.Objects[len(result.Objects)-1].Key
			break
		}
		result.Objects = append(result.Objects, *s.infoFor(key, s.objects[key]))
	}
	s.mu.RUnlock()
	return result, nil
}

// Len returns the number of stored objects. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func (s *MemoryStore) infoFor(key string, obj memoryObject) *ObjectInfo {
	return &ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		ETag:         obj.etag,
		LastModified: obj.modified,
	}
}

func readBody(ctx context.Context, body io.Reader, size int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return nil, fmt.Errorf("body size mismatch: declared %d, read %d", size, len(data))
	}
	return data, nil
}

func computeETag(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
