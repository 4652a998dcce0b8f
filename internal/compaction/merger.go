package compaction

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/granitedb/granite/internal/logging"
	"github.com/granitedb/granite/internal/metrics"
	"github.com/granitedb/granite/internal/rowset"
	"github.com/granitedb/granite/internal/tablet"
	"github.com/granitedb/granite/pkg/objectstore"
)

// MergeStats summarizes a finished merge for logging and metrics.
type MergeStats struct {
	InputRowsets int
	InputRows    int64
	OutputRows   int64
	OutputBytes  int64
	Duration     time.Duration
}

// Merger reads candidate rowset payloads, merges them into one rowset, and
// publishes the result on the tablet's version chain.
type Merger struct {
	store  objectstore.Store
	logger *logging.Logger
}

// NewMerger creates a Merger writing merged payloads to store.
func NewMerger(store objectstore.Store, logger *logging.Logger) *Merger {
	return &Merger{store: store, logger: logger}
}

// Merge combines candidates into a single merged rowset and swaps it into the
// tablet's chain. Candidates must be a contiguous run of the chain. Rows with
// the same key collapse to the highest sequence; delete-bitmap marked rows
// are skipped on read. Tombstones are dropped only when the merged span
// starts at version 0, since older rowsets that could still resurrect the key
// no longer exist below the output.
func (m *Merger) Merge(ctx context.Context, t *tablet.Tablet, kind Kind, candidates []*rowset.Rowset) (*rowset.Rowset, *MergeStats, error) {
	if len(candidates) == 0 {
		return nil, nil, ErrNoSuitableVersion
	}
	span := InputSpan(candidates)
	start := time.Now()

	rows, inputRows, err := m.readInputs(ctx, candidates)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMergeFailed, err)
	}

	merged := mergeRows(rows, span.Start == 0)

	payload, err := rowset.EncodeRowBlock(merged)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encode merged block: %v", ErrMergeFailed, err)
	}
	payload, err = rowset.CompressRowBlock(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: compress merged block: %v", ErrMergeFailed, err)
	}

	out := &rowset.Rowset{
		ID:           rowset.NewID(),
		TabletID:     t.ID(),
		Version:      span,
		RowCount:     int64(len(merged)),
		DataSize:     int64(len(payload)),
		SegmentCount: 1,
		CreatedAt:    time.Now().UTC(),
	}
	out.DataKey = rowset.DataKey(t.ID(), out.ID)

	if _, err := m.store.Put(ctx, out.DataKey, bytes.NewReader(payload), int64(len(payload))); err != nil {
		return nil, nil, fmt.Errorf("%w: write merged payload: %v", ErrMergeFailed, err)
	}

	if err := t.Chain().Replace(out); err != nil {
		// Publishing failed; the orphan payload must not outlive the task.
		if delErr := m.store.Delete(ctx, out.DataKey); delErr != nil {
			m.logger.Warn("orphan merged payload not deleted",
				"data_key", out.DataKey, "error", delErr)
		}
		return nil, nil, fmt.Errorf("%w: publish merged rowset: %v", ErrMergeFailed, err)
	}

	m.cleanupInputs(ctx, candidates)

	stats := &MergeStats{
		InputRowsets: len(candidates),
		InputRows:    inputRows,
		OutputRows:   out.RowCount,
		OutputBytes:  out.DataSize,
		Duration:     time.Since(start),
	}
	metrics.ObserveMergeOutput(string(kind), stats.InputRows, stats.OutputBytes)
	return out, stats, nil
}

func (m *Merger) readInputs(ctx context.Context, candidates []*rowset.Rowset) ([]rowset.Row, int64, error) {
	var rows []rowset.Row
	var total int64
	for _, rs := range candidates {
		if rs.DataKey == "" {
			continue
		}
		rc, _, err := m.store.Get(ctx, rs.DataKey)
		if err != nil {
			return nil, 0, fmt.Errorf("open rowset %s: %w", rs.ID, err)
		}
		payload, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, 0, fmt.Errorf("read rowset %s: %w", rs.ID, err)
		}
		payload, err = rowset.DecompressRowBlock(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("decompress rowset %s: %w", rs.ID, err)
		}
		decoded, err := rowset.DecodeRowBlock(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("decode rowset %s: %w", rs.ID, err)
		}
		total += int64(len(decoded))
		for ordinal, row := range decoded {
			if rs.RowDeleted(uint32(ordinal)) {
				continue
			}
			rows = append(rows, row)
		}
	}
	return rows, total, nil
}

// mergeRows collapses rows to one survivor per key, keeping the highest
// sequence. dropTombstones removes deletion markers entirely, which is only
// safe when no older data exists below the merged span.
func mergeRows(rows []rowset.Row, dropTombstones bool) []rowset.Row {
	survivors := make(map[string]rowset.Row, len(rows))
	for _, row := range rows {
		if cur, ok := survivors[row.Key]; ok && cur.Seq >= row.Seq {
			continue
		}
		survivors[row.Key] = row
	}

	out := make([]rowset.Row, 0, len(survivors))
	for _, row := range survivors {
		if dropTombstones && row.Tombstone {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// cleanupInputs deletes superseded payloads. Best effort: the chain already
// points at the merged rowset, so a leftover payload is garbage, not
// corruption.
func (m *Merger) cleanupInputs(ctx context.Context, candidates []*rowset.Rowset) {
	for _, rs := range candidates {
		if rs.DataKey == "" {
			continue
		}
		if err := m.store.Delete(ctx, rs.DataKey); err != nil && !objectstore.IsNotFoundError(err) {
			m.logger.Warn("superseded rowset payload not deleted",
				"data_key", rs.DataKey, "error", err)
		}
	}
}
