package replication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/granitedb/granite/internal/rowset"
	"github.com/granitedb/granite/pkg/objectstore"
)

var (
	// ErrNoPeer means no peer replica is reachable for this tablet.
	ErrNoPeer = errors.New("no peer replica available")

	// ErrPeerMissingRowset means the chosen peer has not compacted the
	// requested version span yet.
	ErrPeerMissingRowset = errors.New("peer has no merged rowset for span")
)

// PeerFetcher retrieves an already-merged rowset covering a version span
// from a peer replica, instead of recomputing the merge locally.
type PeerFetcher interface {
	FetchMerged(ctx context.Context, tabletID int64, span rowset.Version) (*rowset.Rowset, error)
}

// HTTPFetcher asks peers over their HTTP surface for merged rowset metadata
// and verifies the payload is readable in the shared object store.
type HTTPFetcher struct {
	provider Provider
	store    objectstore.Store
	selfAddr string
	client   *http.Client
}

// NewHTTPFetcher creates a fetcher that skips selfAddr when picking peers.
func NewHTTPFetcher(provider Provider, store objectstore.Store, selfAddr string) *HTTPFetcher {
	return &HTTPFetcher{
		provider: provider,
		store:    store,
		selfAddr: selfAddr,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchMerged tries each peer in turn until one returns a merged rowset
// covering exactly span. The rowset payload stays in the shared object
// store; only metadata travels over HTTP.
func (f *HTTPFetcher) FetchMerged(ctx context.Context, tabletID int64, span rowset.Version) (*rowset.Rowset, error) {
	peers := f.provider.Nodes()
	tried := 0
	var lastErr error

	for _, peer := range peers {
		if peer.Addr == "" || peer.Addr == f.selfAddr {
			continue
		}
		tried++
		rs, err := f.fetchFromPeer(ctx, peer, tabletID, span)
		if err != nil {
			lastErr = err
			continue
		}
		if err := f.verifyPayload(ctx, rs); err != nil {
			lastErr = err
			continue
		}
		return rs, nil
	}

	if tried == 0 {
		return nil, fmt.Errorf("tablet_id=%d: %w", tabletID, ErrNoPeer)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("tablet_id=%d span=%s: %w", tabletID, span, ErrPeerMissingRowset)
}

func (f *HTTPFetcher) fetchFromPeer(ctx context.Context, peer Node, tabletID int64, span rowset.Version) (*rowset.Rowset, error) {
	query := url.Values{}
	query.Set("tablet_id", fmt.Sprintf("%d", tabletID))
	query.Set("start_version", fmt.Sprintf("%d", span.Start))
	query.Set("end_version", fmt.Sprintf("%d", span.End))
	endpoint := fmt.Sprintf("http://%s/api/compaction/peer_rowset?%s", peer.Addr, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("peer %s: %w", peer.Addr, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("peer %s tablet_id=%d span=%s: %w", peer.Addr, tabletID, span, ErrPeerMissingRowset)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("peer %s returned %d: %s", peer.Addr, resp.StatusCode, body)
	}

	var rs rowset.Rowset
	if err := json.NewDecoder(resp.Body).Decode(&rs); err != nil {
		return nil, fmt.Errorf("decode peer rowset: %w", err)
	}
	if rs.Version != span {
		return nil, fmt.Errorf("peer %s returned span %s, want %s", peer.Addr, rs.Version, span)
	}
	return &rs, nil
}

func (f *HTTPFetcher) verifyPayload(ctx context.Context, rs *rowset.Rowset) error {
	if rs.DataKey == "" {
		return fmt.Errorf("peer rowset %s has no data key", rs.ID)
	}
	if _, err := f.store.Head(ctx, rs.DataKey); err != nil {
		return fmt.Errorf("peer rowset payload %s: %w", rs.DataKey, err)
	}
	return nil
}
