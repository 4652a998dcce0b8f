package compaction

import (
	"context"
	"time"

	"github.com/granitedb/granite/internal/logging"
	"github.com/granitedb/granite/internal/rowset"
	"github.com/granitedb/granite/internal/tablet"
)

// BaseTask merges the chain prefix below the cumulative point into a single
// base rowset.
type BaseTask struct {
	tablet *tablet.Tablet
	merger *Merger
	logger *logging.Logger

	// minRowsets is the base-level rowset count required before a merge is
	// worthwhile.
	minRowsets int

	candidates []*rowset.Rowset
	prepared   bool
}

// NewBaseTask creates a base compaction task for t.
func NewBaseTask(t *tablet.Tablet, merger *Merger, logger *logging.Logger, minRowsets int) *BaseTask {
	if minRowsets < 2 {
		minRowsets = 2
	}
	return &BaseTask{
		tablet:     t,
		merger:     merger,
		logger:     logger.WithTablet(t.ID(), t.TableID()),
		minRowsets: minRowsets,
	}
}

func (b *BaseTask) Kind() Kind             { return KindBase }
func (b *BaseTask) Tablet() *tablet.Tablet { return b.tablet }

// Prepare takes the base lock and selects the base-level run. The lock is
// held across Execute only when Prepare succeeds.
func (b *BaseTask) Prepare(ctx context.Context) error {
	locks := b.tablet.Locks()
	if !locks.TryLockBase() {
		return ErrLockConflict
	}

	candidates := b.tablet.BaseRowsets()
	if len(candidates) < b.minRowsets {
		locks.UnlockBase()
		return ErrNoSuitableVersion
	}

	b.candidates = candidates
	b.prepared = true
	return nil
}

// Execute merges the selected base run and publishes the result.
func (b *BaseTask) Execute(ctx context.Context) error {
	if !b.prepared {
		return ErrNotPrepared
	}
	defer func() {
		b.prepared = false
		b.tablet.Locks().UnlockBase()
	}()

	merged, stats, err := b.merger.Merge(ctx, b.tablet, KindBase, b.candidates)
	if err != nil {
		b.tablet.RecordFailure(time.Now())
		return err
	}

	b.tablet.RecordSuccess("base", time.Now())
	b.logger.Info("base compaction finished",
		"span", merged.Version.String(),
		"input_rowsets", stats.InputRowsets,
		"input_rows", stats.InputRows,
		"output_rows", stats.OutputRows,
		"output_bytes", stats.OutputBytes,
		"duration_ms", stats.Duration.Milliseconds(),
	)
	return nil
}
