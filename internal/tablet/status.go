package tablet

import (
	"time"

	"github.com/granitedb/granite/internal/rowset"
)

// RunKind identifies which compaction, if any, is currently running.
type RunKind string

const (
	RunNone       RunKind = "none"
	RunBase       RunKind = "base"
	RunCumulative RunKind = "cumulative"
	RunFull       RunKind = "full"
)

// RunStatus determines whether a compaction is in progress, by fixed
// priority: full, then cumulative, then base. Full is checked via the flag
// rather than a lock probe, since full compaction holds both level locks and
// a probe could not tell it apart from single-level tasks. The level checks
// are non-blocking try-locks released immediately.
func (t *Tablet) RunStatus() RunKind {
	if t.locks.FullRunning() {
		return RunFull
	}
	if !t.locks.TryLockCumulative() {
		return RunCumulative
	}
	t.locks.UnlockCumulative()
	if !t.locks.TryLockBase() {
		return RunBase
	}
	t.locks.UnlockBase()
	return RunNone
}

// RowsetStatus summarizes one rowset for status output.
type RowsetStatus struct {
	ID           string         `json:"id"`
	Version      rowset.Version `json:"version"`
	RowCount     int64          `json:"row_count"`
	DataSize     int64          `json:"data_size"`
	SegmentCount int            `json:"segment_count"`
	CreatedAt    time.Time      `json:"created_at"`
}

// CompactionStatus is the tablet-level statistics payload returned by the
// show-compaction query.
type CompactionStatus struct {
	TabletID              int64          `json:"tablet_id"`
	TableID               int64          `json:"table_id"`
	Policy                string         `json:"compaction_policy"`
	CumulativePoint       int64          `json:"cumulative_point"`
	RowsetCount           int            `json:"rowset_count"`
	TotalRows             int64          `json:"total_rows"`
	TotalBytes            int64          `json:"total_bytes"`
	MaxVersion            int64          `json:"max_version"`
	Rowsets               []RowsetStatus `json:"rowsets"`
	LastBaseSuccess       time.Time      `json:"last_base_success,omitempty"`
	LastCumulativeSuccess time.Time      `json:"last_cumulative_success,omitempty"`
	LastFullSuccess       time.Time      `json:"last_full_success,omitempty"`
	LastFailure           time.Time      `json:"last_failure,omitempty"`
}

// Status collects the tablet's compaction statistics. Non-mutating; does not
// contend with in-flight compaction beyond reading the chain snapshot.
func (t *Tablet) Status() CompactionStatus {
	snapshot := t.chain.Snapshot()
	status := CompactionStatus{
		TabletID:        t.meta.TabletID,
		TableID:         t.meta.TableID,
		CumulativePoint: t.CumulativePoint(),
		RowsetCount:     len(snapshot),
		MaxVersion:      t.chain.MaxVersion(),
	}

	t.mu.Lock()
	if t.policy != nil {
		status.Policy = t.policy.Name()
	} else {
		status.Policy = t.meta.Policy
	}
	status.LastBaseSuccess = t.lastBaseSuccess
	status.LastCumulativeSuccess = t.lastCumulativeSuccess
	status.LastFullSuccess = t.lastFullSuccess
	status.LastFailure = t.lastFailure
	t.mu.Unlock()

	for _, rs := range snapshot {
		status.TotalRows += rs.RowCount
		status.TotalBytes += rs.DataSize
		status.Rowsets = append(status.Rowsets, RowsetStatus{
			ID:           rs.ID,
			Version:      rs.Version,
			RowCount:     rs.RowCount,
			DataSize:     rs.DataSize,
			SegmentCount: rs.SegmentCount,
			CreatedAt:    rs.CreatedAt,
		})
	}
	return status
}
