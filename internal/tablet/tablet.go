// Package tablet models a horizontally partitioned storage unit and its
// compaction state: version chain, lock set, bound policy, run status.
package tablet

import (
	"sync"
	"time"

	"github.com/granitedb/granite/internal/policy"
	"github.com/granitedb/granite/internal/rowset"
)

// Meta is the persisted identity and configuration of a tablet. The
// compaction core reads it; the tablet management collaborator owns it.
type Meta struct {
	TabletID int64  `json:"tablet_id"`
	TableID  int64  `json:"table_id"`
	ShardID  int64  `json:"shard_id"`
	SchemaID int64  `json:"schema_id"`
	Policy   string `json:"compaction_policy"`

	// FetchFromPeer marks a replica that should fetch merged rowsets from
	// a peer instead of recomputing cumulative compaction locally.
	FetchFromPeer bool `json:"fetch_from_peer"`
}

// Tablet owns a version chain of rowsets, the compaction lock set, and the
// lazily bound cumulative compaction policy.
type Tablet struct {
	meta  Meta
	chain *rowset.Chain
	locks LockSet

	mu              sync.Mutex
	policy          policy.CumulativePolicy
	cumulativePoint int64

	lastBaseSuccess       time.Time
	lastCumulativeSuccess time.Time
	lastFullSuccess       time.Time
	lastFailure           time.Time
}

// New creates a tablet around an existing version chain. The cumulative
// point starts after the first rowset, which holds the base data.
func New(meta Meta, chain *rowset.Chain) *Tablet {
	t := &Tablet{meta: meta, chain: chain}
	if snapshot := chain.Snapshot(); len(snapshot) > 0 {
		t.cumulativePoint = snapshot[0].Version.End + 1
	}
	return t
}

// ID returns the tablet identifier.
func (t *Tablet) ID() int64 { return t.meta.TabletID }

// TableID returns the owning table identifier.
func (t *Tablet) TableID() int64 { return t.meta.TableID }

// Meta returns a copy of the tablet metadata.
func (t *Tablet) Meta() Meta { return t.meta }

// ShouldFetchFromPeer reports whether cumulative compaction must fetch an
// already-merged rowset from a peer replica instead of merging locally.
func (t *Tablet) ShouldFetchFromPeer() bool { return t.meta.FetchFromPeer }

// Chain returns the tablet's version chain.
func (t *Tablet) Chain() *rowset.Chain { return t.chain }

// Locks returns the tablet's compaction lock set.
func (t *Tablet) Locks() *LockSet { return &t.locks }

// Policy returns the bound cumulative policy, or nil before first binding.
func (t *Tablet) Policy() policy.CumulativePolicy {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.policy
}

// BindPolicyOnce binds p unless a policy is already bound, and returns the
// policy in effect afterwards. Rebinding requires a new tablet, matching the
// bind-once contract of persisted tablet configuration.
func (t *Tablet) BindPolicyOnce(p policy.CumulativePolicy) policy.CumulativePolicy {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.policy == nil {
		t.policy = p
	}
	return t.policy
}

// CumulativePoint is the version where the cumulative level begins. Rowsets
// strictly below it belong to the base level.
func (t *Tablet) CumulativePoint() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cumulativePoint
}

// AdvanceCumulativePoint moves the cumulative point forward. Moves backwards
// are ignored; the point only advances as merges complete.
func (t *Tablet) AdvanceCumulativePoint(version int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if version > t.cumulativePoint {
		t.cumulativePoint = version
	}
}

// BaseRowsets returns the chain prefix below the cumulative point.
func (t *Tablet) BaseRowsets() []*rowset.Rowset {
	point := t.CumulativePoint()
	var out []*rowset.Rowset
	for _, rs := range t.chain.Snapshot() {
		if rs.Version.End >= point {
			break
		}
		out = append(out, rs)
	}
	return out
}

// CumulativeRowsets returns the chain suffix at or above the cumulative point.
func (t *Tablet) CumulativeRowsets() []*rowset.Rowset {
	point := t.CumulativePoint()
	var out []*rowset.Rowset
	for _, rs := range t.chain.Snapshot() {
		if rs.Version.Start < point {
			continue
		}
		out = append(out, rs)
	}
	return out
}

// RecordSuccess notes a finished compaction of the given kind for status
// reporting.
func (t *Tablet) RecordSuccess(kind string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch kind {
	case "base":
		t.lastBaseSuccess = at
	case "cumulative":
		t.lastCumulativeSuccess = at
	case "full":
		t.lastFullSuccess = at
	}
}

// RecordFailure notes a failed compaction attempt.
func (t *Tablet) RecordFailure(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastFailure = at
}
