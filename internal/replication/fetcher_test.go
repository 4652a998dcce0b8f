package replication

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/granitedb/granite/internal/rowset"
	"github.com/granitedb/granite/pkg/objectstore"
)

func TestStaticProvider(t *testing.T) {
	p := NewStaticProviderFromNodes([]Node{{ID: "a", Addr: "10.0.0.1:8040"}})

	nodes := p.Nodes()
	if len(nodes) != 1 || nodes[0].Addr != "10.0.0.1:8040" {
		t.Fatalf("unexpected nodes: %v", nodes)
	}

	var notified []Node
	p.OnChange(func(nodes []Node) { notified = nodes })
	p.SetNodes([]Node{{ID: "b", Addr: "10.0.0.2:8040"}})
	if len(notified) != 1 || notified[0].ID != "b" {
		t.Errorf("OnChange not invoked with new nodes: %v", notified)
	}
}

func peerServer(t *testing.T, store objectstore.Store, rs *rowset.Rowset) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/api/compaction/peer_rowset" {
			http.NotFound(w, req)
			return
		}
		q := req.URL.Query()
		if rs == nil || q.Get("start_version") == "" {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rs)
	}))
}

func TestHTTPFetcherFetchesFromPeer(t *testing.T) {
	store := objectstore.NewMemoryStore()
	payload := []byte("merged payload")
	rs := &rowset.Rowset{
		ID:        rowset.NewID(),
		TabletID:  42,
		Version:   rowset.Version{Start: 3, End: 7},
		RowCount:  10,
		DataSize:  int64(len(payload)),
		CreatedAt: time.Now().UTC(),
	}
	rs.DataKey = rowset.DataKey(42, rs.ID)
	if _, err := store.Put(context.Background(), rs.DataKey, bytes.NewReader(payload), int64(len(payload))); err != nil {
		t.Fatalf("seed payload: %v", err)
	}

	srv := peerServer(t, store, rs)
	defer srv.Close()
	peerAddr := strings.TrimPrefix(srv.URL, "http://")

	fetcher := NewHTTPFetcher(NewStaticProviderFromNodes([]Node{{ID: "peer", Addr: peerAddr}}), store, "self:8040")
	got, err := fetcher.FetchMerged(context.Background(), 42, rowset.Version{Start: 3, End: 7})
	if err != nil {
		t.Fatalf("FetchMerged failed: %v", err)
	}
	if got.ID != rs.ID || got.Version != rs.Version {
		t.Errorf("fetched wrong rowset: %+v", got)
	}
}

func TestHTTPFetcherRejectsWrongSpan(t *testing.T) {
	store := objectstore.NewMemoryStore()
	rs := &rowset.Rowset{
		ID:      rowset.NewID(),
		Version: rowset.Version{Start: 3, End: 7},
		DataKey: rowset.DataKey(42, "x"),
	}
	srv := peerServer(t, store, rs)
	defer srv.Close()
	peerAddr := strings.TrimPrefix(srv.URL, "http://")

	fetcher := NewHTTPFetcher(NewStaticProviderFromNodes([]Node{{ID: "peer", Addr: peerAddr}}), store, "self:8040")
	if _, err := fetcher.FetchMerged(context.Background(), 42, rowset.Version{Start: 0, End: 7}); err == nil {
		t.Fatal("span mismatch accepted")
	}
}

func TestHTTPFetcherRejectsMissingPayload(t *testing.T) {
	store := objectstore.NewMemoryStore()
	rs := &rowset.Rowset{
		ID:      rowset.NewID(),
		Version: rowset.Version{Start: 3, End: 7},
		DataKey: rowset.DataKey(42, "never-written"),
	}
	srv := peerServer(t, store, rs)
	defer srv.Close()
	peerAddr := strings.TrimPrefix(srv.URL, "http://")

	fetcher := NewHTTPFetcher(NewStaticProviderFromNodes([]Node{{ID: "peer", Addr: peerAddr}}), store, "self:8040")
	if _, err := fetcher.FetchMerged(context.Background(), 42, rowset.Version{Start: 3, End: 7}); !objectstore.IsNotFoundError(err) {
		t.Fatalf("missing payload: want not-found, got %v", err)
	}
}

func TestHTTPFetcherNoPeers(t *testing.T) {
	store := objectstore.NewMemoryStore()

	fetcher := NewHTTPFetcher(NewStaticProviderFromNodes(nil), store, "self:8040")
	_, err := fetcher.FetchMerged(context.Background(), 42, rowset.Version{Start: 0, End: 1})
	if !errors.Is(err, ErrNoPeer) {
		t.Fatalf("want ErrNoPeer, got %v", err)
	}

	// The fetcher must never call itself.
	self := NewHTTPFetcher(NewStaticProviderFromNodes([]Node{{ID: "me", Addr: "self:8040"}}), store, "self:8040")
	if _, err := self.FetchMerged(context.Background(), 42, rowset.Version{Start: 0, End: 1}); !errors.Is(err, ErrNoPeer) {
		t.Fatalf("self-only peer list: want ErrNoPeer, got %v", err)
	}
}

func TestHTTPFetcherPeerMissingRowset(t *testing.T) {
	store := objectstore.NewMemoryStore()
	srv := peerServer(t, store, nil)
	defer srv.Close()
	peerAddr := strings.TrimPrefix(srv.URL, "http://")

	fetcher := NewHTTPFetcher(NewStaticProviderFromNodes([]Node{{ID: "peer", Addr: peerAddr}}), store, "self:8040")
	if _, err := fetcher.FetchMerged(context.Background(), 42, rowset.Version{Start: 3, End: 7}); !errors.Is(err, ErrPeerMissingRowset) {
		t.Fatalf("want ErrPeerMissingRowset, got %v", err)
	}
}
