// Package compaction implements the background merge tasks that keep tablet
// version chains short: base, cumulative, full and single-replica compaction,
// plus the scheduler that runs them.
package compaction

import (
	"context"

	"github.com/granitedb/granite/internal/rowset"
	"github.com/granitedb/granite/internal/tablet"
)

// Kind labels a compaction variant. The values double as metric label values
// and API parameter values.
type Kind string

const (
	KindBase          Kind = "base"
	KindCumulative    Kind = "cumulative"
	KindFull          Kind = "full"
	KindSingleReplica Kind = "single_replica"
)

// ParseKind maps an API compact_type string to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindBase, KindCumulative, KindFull:
		return Kind(s), true
	default:
		return "", false
	}
}

// Task is one compaction attempt on one tablet, run in two phases.
//
// Prepare acquires the variant's locks and selects input rowsets. It fails
// fast with ErrLockConflict when a conflicting compaction runs, and with
// ErrNoSuitableVersion when nothing qualifies; in both cases no locks are
// held afterwards.
//
// Execute merges the selected inputs and publishes the result. It must only
// run after a successful Prepare and releases all locks on every exit path.
type Task interface {
	Kind() Kind
	Tablet() *tablet.Tablet
	Prepare(ctx context.Context) error
	Execute(ctx context.Context) error
}

// InputSpan returns the version span covered by a contiguous candidate run.
func InputSpan(candidates []*rowset.Rowset) rowset.Version {
	if len(candidates) == 0 {
		return rowset.Version{Start: 0, End: -1}
	}
	return rowset.Version{
		Start: candidates[0].Version.Start,
		End:   candidates[len(candidates)-1].Version.End,
	}
}
