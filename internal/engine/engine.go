// Package engine wires the tablet registry, the compaction scheduler and the
// object store into one storage engine instance.
package engine

import (
	"context"
	"fmt"

	"github.com/granitedb/granite/internal/compaction"
	"github.com/granitedb/granite/internal/config"
	"github.com/granitedb/granite/internal/logging"
	"github.com/granitedb/granite/internal/policy"
	"github.com/granitedb/granite/internal/replication"
	"github.com/granitedb/granite/internal/rowset"
	"github.com/granitedb/granite/internal/tablet"
	"github.com/granitedb/granite/pkg/objectstore"
)

// Engine hosts tablets and runs their background compactions.
type Engine struct {
	cfg     *config.Config
	logger  *logging.Logger
	store   objectstore.Store
	tablets *tablet.Manager
	sched   *compaction.Scheduler
	merger  *compaction.Merger
	fetcher replication.PeerFetcher
}

// New creates an engine. fetcher may be nil when single-replica compaction is
// not configured; remote triggers then fail cleanly.
func New(cfg *config.Config, logger *logging.Logger, store objectstore.Store, fetcher replication.PeerFetcher) *Engine {
	return &Engine{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		tablets: tablet.NewManager(),
		sched:   compaction.NewScheduler(cfg.Compaction.SchedulerWorkers, logger),
		merger:  compaction.NewMerger(store, logger),
		fetcher: fetcher,
	}
}

// Start launches the compaction worker pool.
func (e *Engine) Start() { e.sched.Start() }

// Stop drains the scheduler. In-flight merges run to completion.
func (e *Engine) Stop() { e.sched.Stop() }

// Store returns the rowset payload store.
func (e *Engine) Store() objectstore.Store { return e.store }

// Tablets returns the tablet registry.
func (e *Engine) Tablets() *tablet.Manager { return e.tablets }

// RegisterTablet creates a tablet around chain and adds it to the registry.
func (e *Engine) RegisterTablet(meta tablet.Meta, chain *rowset.Chain) *tablet.Tablet {
	t := tablet.New(meta, chain)
	e.tablets.Add(t)
	return t
}

// PolicyParams derives candidate selection tuning from configuration.
func (e *Engine) PolicyParams() policy.Params {
	return policy.Params{
		TierRatio:     e.cfg.Compaction.TierRatio,
		MinRun:        e.cfg.Compaction.MinTierRowsets,
		WindowSeconds: int64(e.cfg.Compaction.TimeSeriesWindowSeconds),
	}
}

// NewTask builds the task for one compaction attempt. remote selects the
// single-replica variant and is only meaningful for cumulative compaction on
// a fetch-from-peer tablet; both constraints are checked here, before any
// lock is touched.
func (e *Engine) NewTask(t *tablet.Tablet, kind compaction.Kind, remote bool) (compaction.Task, error) {
	if remote {
		if kind != compaction.KindCumulative {
			return nil, fmt.Errorf("remote compaction only supports cumulative, got %q", kind)
		}
		if !t.ShouldFetchFromPeer() {
			return nil, fmt.Errorf("tablet_id=%d: %w", t.ID(), compaction.ErrPeerFetchNotAllowed)
		}
		if e.fetcher == nil {
			return nil, fmt.Errorf("tablet_id=%d: no peer fetcher configured", t.ID())
		}
		return compaction.NewSingleReplicaTask(t, e.merger, e.fetcher, e.logger), nil
	}

	switch kind {
	case compaction.KindBase:
		return compaction.NewBaseTask(t, e.merger, e.logger, e.cfg.Compaction.BaseMinRowsets), nil
	case compaction.KindCumulative:
		return compaction.NewCumulativeTask(t, e.merger, e.logger, e.cfg.Compaction.DefaultPolicy, e.PolicyParams()), nil
	case compaction.KindFull:
		return compaction.NewFullTask(t, e.merger, e.logger), nil
	default:
		return nil, fmt.Errorf("unknown compaction kind %q", kind)
	}
}

// TriggerOutcome is the result of a bounded-wait trigger.
type TriggerOutcome struct {
	Kind compaction.Kind
	// Completed reports whether the task finished within the wait window.
	// When false the task keeps running in the background.
	Completed bool
	// Err is the task outcome, only meaningful when Completed.
	Err error
}

// Trigger submits one compaction for a tablet and waits a bounded interval
// for it to finish. A timeout detaches the caller without cancelling the
// task.
func (e *Engine) Trigger(ctx context.Context, tabletID int64, kind compaction.Kind, remote bool) (TriggerOutcome, error) {
	out := TriggerOutcome{Kind: kind}

	t, err := e.tablets.Get(tabletID)
	if err != nil {
		return out, err
	}

	// The debug point replaces the requested task with a fixed local
	// cumulative compaction and reports success without waiting on it.
	if e.cfg.DebugPointEnabled(compaction.DebugPointSubmitBypass) {
		task, err := e.NewTask(t, compaction.KindCumulative, false)
		if err != nil {
			return out, err
		}
		if _, err := e.sched.Submit(task); err != nil {
			return out, err
		}
		out.Kind = compaction.KindCumulative
		out.Completed = true
		return out, nil
	}

	task, err := e.NewTask(t, kind, remote)
	if err != nil {
		return out, err
	}
	handle, err := e.sched.Submit(task)
	if err != nil {
		return out, err
	}
	out.Err, out.Completed = e.sched.Await(handle, e.cfg.Compaction.TriggerWait())
	return out, nil
}

// TriggerTable submits a full compaction for every tablet of a table,
// fire and forget. Submission failures on one tablet never stop the rest.
// It returns the number of tablets submitted.
func (e *Engine) TriggerTable(ctx context.Context, tableID int64) (int, error) {
	tablets := e.tablets.GetAll(func(t *tablet.Tablet) bool { return t.TableID() == tableID })
	if len(tablets) == 0 {
		return 0, fmt.Errorf("table_id=%d: %w", tableID, tablet.ErrNotFound)
	}

	submitted := 0
	for _, t := range tablets {
		task, err := e.NewTask(t, compaction.KindFull, false)
		if err != nil {
			e.logger.Warn("table compaction skipped tablet",
				"table_id", tableID, "tablet_id", t.ID(), "error", err)
			continue
		}
		if _, err := e.sched.Submit(task); err != nil {
			e.logger.Warn("table compaction submit failed",
				"table_id", tableID, "tablet_id", t.ID(), "error", err)
			continue
		}
		submitted++
	}
	return submitted, nil
}

// RunStatus reports which compaction, if any, runs on a tablet right now.
func (e *Engine) RunStatus(tabletID int64) (tablet.RunKind, error) {
	t, err := e.tablets.Get(tabletID)
	if err != nil {
		return tablet.RunNone, err
	}
	return t.RunStatus(), nil
}

// RunStatusAll counts currently running compactions per kind across all
// hosted tablets.
func (e *Engine) RunStatusAll() map[tablet.RunKind]int {
	counts := make(map[tablet.RunKind]int)
	for _, t := range e.tablets.GetAll(nil) {
		if kind := t.RunStatus(); kind != tablet.RunNone {
			counts[kind]++
		}
	}
	return counts
}

// Status returns a tablet's compaction status snapshot.
func (e *Engine) Status(tabletID int64) (tablet.CompactionStatus, error) {
	t, err := e.tablets.Get(tabletID)
	if err != nil {
		return tablet.CompactionStatus{}, err
	}
	return t.Status(), nil
}

// PeerRowset serves the peer side of single-replica compaction: it returns
// the rowset covering exactly span, if this node has merged it already.
func (e *Engine) PeerRowset(tabletID int64, span rowset.Version) (*rowset.Rowset, error) {
	t, err := e.tablets.Get(tabletID)
	if err != nil {
		return nil, err
	}
	for _, rs := range t.Chain().Snapshot() {
		if rs.Version == span {
			return rs, nil
		}
	}
	return nil, fmt.Errorf("tablet_id=%d span=%s: %w", tabletID, span, rowset.ErrSpanNotFound)
}
