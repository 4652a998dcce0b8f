package compaction

import (
	"context"
	"time"

	"github.com/granitedb/granite/internal/logging"
	"github.com/granitedb/granite/internal/rowset"
	"github.com/granitedb/granite/internal/tablet"
)

// FullTask merges the entire version chain into one rowset. It spans both
// levels, so it sets the full-run flag and holds the base and cumulative
// locks for its whole run.
type FullTask struct {
	tablet *tablet.Tablet
	merger *Merger
	logger *logging.Logger

	candidates []*rowset.Rowset
	prepared   bool
}

// NewFullTask creates a full compaction task for t.
func NewFullTask(t *tablet.Tablet, merger *Merger, logger *logging.Logger) *FullTask {
	return &FullTask{
		tablet: t,
		merger: merger,
		logger: logger.WithTablet(t.ID(), t.TableID()),
	}
}

func (f *FullTask) Kind() Kind             { return KindFull }
func (f *FullTask) Tablet() *tablet.Tablet { return f.tablet }

// Prepare sets the full-run flag and takes both level locks. Any conflict
// releases everything taken so far and fails immediately.
func (f *FullTask) Prepare(ctx context.Context) error {
	locks := f.tablet.Locks()
	if !locks.TryStartFull() {
		return ErrLockConflict
	}
	if !locks.TryLockBase() {
		locks.FinishFull()
		return ErrLockConflict
	}
	if !locks.TryLockCumulative() {
		locks.UnlockBase()
		locks.FinishFull()
		return ErrLockConflict
	}

	candidates := f.tablet.Chain().Snapshot()
	if len(candidates) < 2 {
		f.release()
		return ErrNoSuitableVersion
	}

	f.candidates = candidates
	f.prepared = true
	return nil
}

func (f *FullTask) release() {
	locks := f.tablet.Locks()
	locks.UnlockCumulative()
	locks.UnlockBase()
	locks.FinishFull()
}

// Execute merges the whole chain into one rowset and moves the cumulative
// point past it, so the next ingested rowset starts the cumulative level.
func (f *FullTask) Execute(ctx context.Context) error {
	if !f.prepared {
		return ErrNotPrepared
	}
	defer func() {
		f.prepared = false
		f.release()
	}()

	merged, stats, err := f.merger.Merge(ctx, f.tablet, KindFull, f.candidates)
	if err != nil {
		f.tablet.RecordFailure(time.Now())
		return err
	}

	f.tablet.AdvanceCumulativePoint(merged.Version.End + 1)
	f.tablet.RecordSuccess("full", time.Now())
	f.logger.Info("full compaction finished",
		"span", merged.Version.String(),
		"input_rowsets", stats.InputRowsets,
		"input_rows", stats.InputRows,
		"output_rows", stats.OutputRows,
		"output_bytes", stats.OutputBytes,
		"duration_ms", stats.Duration.Milliseconds(),
	)
	return nil
}
