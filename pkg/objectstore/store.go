// Package objectstore abstracts the durable storage that holds rowset payloads.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNotFound      = errors.New("object not found")
	ErrAlreadyExists = errors.New("object already exists")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// ListResult is one page of a List call.
type ListResult struct {
	Objects     []ObjectInfo
	NextMarker  string
	IsTruncated bool
}

// ListOptions narrows a List call.
type ListOptions struct {
	Prefix  string
	Marker  string
	MaxKeys int
}

// Store is the narrow interface the compaction core reads and writes
// rowset payloads through. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	Head(ctx context.Context, key string) (*ObjectInfo, error)
	Put(ctx context.Context, key string, body io.Reader, size int64) (*ObjectInfo, error)
	// PutIfAbsent writes only when the key does not exist yet and returns
	// ErrAlreadyExists otherwise.
	PutIfAbsent(ctx context.Context, key string, body io.Reader, size int64) (*ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, opts *ListOptions) (*ListResult, error)
}

// IsNotFoundError reports whether err means the object does not exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflictError reports whether err means a conditional write lost.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}
