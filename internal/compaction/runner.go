package compaction

import (
	"context"
	"errors"
	"time"

	"github.com/granitedb/granite/internal/logging"
	"github.com/granitedb/granite/internal/metrics"
)

// Run drives one task through both phases and applies the error taxonomy:
// no-suitable-version and lock conflicts are benign and never counted as
// failures; genuine failures feed the failure counter only for base and
// cumulative compaction.
func Run(ctx context.Context, task Task, logger *logging.Logger) error {
	kind := string(task.Kind())
	t := task.Tablet()
	taskLogger := logger.WithTablet(t.ID(), t.TableID()).With("compaction_type", kind)

	metrics.IncCompactionInProgress(kind)
	defer metrics.DecCompactionInProgress(kind)

	start := time.Now()
	err := task.Prepare(ctx)
	if err == nil {
		err = task.Execute(ctx)
	}

	switch {
	case err == nil:
		metrics.ObserveCompaction(kind, time.Since(start).Seconds(), nil)
	case errors.Is(err, ErrNoSuitableVersion):
		taskLogger.Debug("no suitable version to compact")
	case errors.Is(err, ErrLockConflict):
		taskLogger.Debug("compaction lock busy")
	default:
		metrics.ObserveCompaction(kind, time.Since(start).Seconds(), err)
		if countsAsFailure(task.Kind()) {
			metrics.IncCompactionFailed(kind)
		}
		taskLogger.Warn("compaction failed", "error", err)
	}
	return err
}

// countsAsFailure reports whether a kind's genuine failures increment the
// failure counter. Full and single-replica runs are logged but not counted.
func countsAsFailure(kind Kind) bool {
	return kind == KindBase || kind == KindCumulative
}
