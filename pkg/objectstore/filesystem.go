package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FilesystemStore keeps objects as files under a root directory.
// Keys map to relative paths; writes go through a temp file + rename so a
// reader never sees a partially written payload.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates a store rooted at dir, creating it if needed.
func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("filesystem store root is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &FilesystemStore{root: dir}, nil
}

func (s *FilesystemStore) pathFor(key string) (string, error) {
	clean := filepath.Clean(key)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *FilesystemStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	path, err := s.pathFor(key)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("get %s: %w", key, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("get %s: %w", key, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", key, err)
	}
	return f, fileInfo(key, stat), nil
}

func (s *FilesystemStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("head %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("head %s: %w", key, err)
	}
	return fileInfo(key, stat), nil
}

func (s *FilesystemStore) Put(ctx context.Context, key string, body io.Reader, size int64) (*ObjectInfo, error) {
	return s.put(ctx, key, body, size, false)
}

func (s *FilesystemStore) PutIfAbsent(ctx context.Context, key string, body io.Reader, size int64) (*ObjectInfo, error) {
	return s.put(ctx, key, body, size, true)
}

func (s *FilesystemStore) put(ctx context.Context, key string, body io.Reader, size int64, ifAbsent bool) (*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	if ifAbsent {
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("put %s: %w", key, ErrAlreadyExists)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("put %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return nil, fmt.Errorf("put %s: %w", key, err)
	}
	tmpName := tmp.Name()
	written, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("put %s: %w", key, err)
	}
	if size >= 0 && written != size {
		os.Remove(tmpName)
		return nil, fmt.Errorf("put %s: body size mismatch: declared %d, wrote %d", key, size, written)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("put %s: %w", key, err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("put %s: %w", key, err)
	}
	return fileInfo(key, stat), nil
}

func (s *FilesystemStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete %s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *FilesystemStore) List(ctx context.Context, opts *ListOptions) (*ListResult, error) {
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

	var keys []string
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		if strings.HasPrefix(filepath.Base(path), ".put-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if opts.Prefix != "" && !strings.HasPrefix(key, opts.Prefix) {
			return nil
		}
		if opts.Marker != "" && key <= opts.Marker {
			return nil
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	sort.Strings(keys)

	result := &ListResult{}
	for _, key := range keys {
		if len(result.Objects) >= maxKeys {
			result.IsTruncated = true
			result.NextMarker = result.Objects[len(result.Objects)-1].Key
			break
		}
		info, err := s.Head(ctx, key)
		if err != nil {
			if IsNotFoundError(err) {
				continue
			}
			return nil, err
		}
		result.Objects = append(result.Objects, *info)
	}
	return result, nil
}

func fileInfo(key string, stat os.FileInfo) *ObjectInfo {
	return &ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		LastModified: stat.ModTime().UTC(),
	}
}
