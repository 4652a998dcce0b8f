package objectstore

import (
	"context"
	"io"
	"time"

	"github.com/granitedb/granite/internal/metrics"
)

// InstrumentedStore wraps a Store and records operation counts and latency.
type InstrumentedStore struct {
	inner Store
}

// NewInstrumentedStore wraps store with Prometheus instrumentation.
func NewInstrumentedStore(store Store) *InstrumentedStore {
	return &InstrumentedStore{inner: store}
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	start := time.Now()
	rc, info, err := s.inner.Get(ctx, key)
	metrics.ObserveObjectStoreOp("get", time.Since(start).Seconds(), err)
	return rc, info, err
}

func (s *InstrumentedStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	start := time.Now()
	info, err := s.inner.Head(ctx, key)
	metrics.ObserveObjectStoreOp("head", time.Since(start).Seconds(), err)
	return info, err
}

func (s *InstrumentedStore) Put(ctx context.Context, key string, body io.Reader, size int64) (*ObjectInfo, error) {
	start := time.Now()
	info, err := s.inner.Put(ctx, key, body, size)
	metrics.ObserveObjectStoreOp("put", time.Since(start).Seconds(), err)
	return info, err
}

func (s *InstrumentedStore) PutIfAbsent(ctx context.Context, key string, body io.Reader, size int64) (*ObjectInfo, error) {
	start := time.Now()
	info, err := s.inner.PutIfAbsent(ctx, key, body, size)
	metrics.ObserveObjectStoreOp("put_if_absent", time.Since(start).Seconds(), err)
	return info, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	metrics.ObserveObjectStoreOp("delete", time.Since(start).Seconds(), err)
	return err
}

func (s *InstrumentedStore) List(ctx context.Context, opts *ListOptions) (*ListResult, error) {
	start := time.Now()
	result, err := s.inner.List(ctx, opts)
	metrics.ObserveObjectStoreOp("list", time.Since(start).Seconds(), err)
	return result, err
}
