package objectstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	runStoreTests(t, store)
}

func TestFilesystemStore(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "granite-fs-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := NewFilesystemStore(tmpDir)
	if err != nil {
		t.Fatalf("failed to create filesystem store: %v", err)
	}

	runStoreTests(t, store)
}

func runStoreTests(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("basic CRUD", func(t *testing.T) {
		testBasicCRUD(t, ctx, store)
	})

	t.Run("conditional writes", func(t *testing.T) {
		testConditionalWrites(t, ctx, store)
	})

	t.Run("list operations", func(t *testing.T) {
		testListOperations(t, ctx, store)
	})
}

func testBasicCRUD(t *testing.T, ctx context.Context, store Store) {
	key := "granite/tablets/1/rowsets/abc"
	content := []byte("row block payload")

	info, err := store.Put(ctx, key, bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if info.Size != int64(len(content)) {
		t.Errorf("size mismatch: got %d, want %d", info.Size, len(content))
	}

	head, err := store.Head(ctx, key)
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if head.Size != int64(len(content)) {
		t.Errorf("Head size mismatch: got %d, want %d", head.Size, len(content))
	}

	rc, _, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content mismatch: got %q, want %q", got, content)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, _, err := store.Get(ctx, key); !IsNotFoundError(err) {
		t.Errorf("Get after delete: want not-found, got %v", err)
	}
	if _, err := store.Head(ctx, key); !IsNotFoundError(err) {
		t.Errorf("Head after delete: want not-found, got %v", err)
	}
}

func testConditionalWrites(t *testing.T, ctx context.Context, store Store) {
	key := "granite/tablets/2/rowsets/cond"
	first := []byte("first")
	second := []byte("second")

	if _, err := store.PutIfAbsent(ctx, key, bytes.NewReader(first), int64(len(first))); err != nil {
		t.Fatalf("initial PutIfAbsent failed: %v", err)
	}
	_, err := store.PutIfAbsent(ctx, key, bytes.NewReader(second), int64(len(second)))
	if !IsConflictError(err) {
		t.Fatalf("second PutIfAbsent: want conflict, got %v", err)
	}

	rc, _, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, first) {
		t.Errorf("losing write visible: got %q, want %q", got, first)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("cleanup Delete failed: %v", err)
	}
}

func testListOperations(t *testing.T, ctx context.Context, store Store) {
	keys := []string{
		"granite/tablets/10/rowsets/a",
		"granite/tablets/10/rowsets/b",
		"granite/tablets/11/rowsets/c",
	}
	for _, key := range keys {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("x")), 1); err != nil {
			t.Fatalf("Put %s failed: %v", key, err)
		}
	}
	defer func() {
		for _, key := range keys {
			store.Delete(ctx, key)
		}
	}()

	result, err := store.List(ctx, &ListOptions{Prefix: "granite/tablets/10/"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(result.Objects) != 2 {
		t.Fatalf("prefix list: got %d objects, want 2", len(result.Objects))
	}
	for _, obj := range result.Objects {
		if obj.Key != keys[0] && obj.Key != keys[1] {
			t.Errorf("unexpected key in prefix list: %s", obj.Key)
		}
	}

	paged, err := store.List(ctx, &ListOptions{Prefix: "granite/tablets/", MaxKeys: 2})
	if err != nil {
		t.Fatalf("paged List failed: %v", err)
	}
	if len(paged.Objects) != 2 || !paged.IsTruncated {
		t.Fatalf("paged list: got %d objects truncated=%v, want 2 truncated", len(paged.Objects), paged.IsTruncated)
	}
	rest, err := store.List(ctx, &ListOptions{Prefix: "granite/tablets/", Marker: paged.NextMarker})
	if err != nil {
		t.Fatalf("marker List failed: %v", err)
	}
	if len(rest.Objects) != 1 {
		t.Errorf("marker list: got %d objects, want 1", len(rest.Objects))
	}
}
