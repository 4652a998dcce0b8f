package compaction

import (
	"context"
	"fmt"
	"time"

	"github.com/granitedb/granite/internal/logging"
	"github.com/granitedb/granite/internal/replication"
	"github.com/granitedb/granite/internal/rowset"
	"github.com/granitedb/granite/internal/tablet"
)

// SingleReplicaTask replaces local cumulative merging for fetch-from-peer
// replicas: it asks a peer for an already-merged rowset covering the local
// cumulative run and swaps it in.
type SingleReplicaTask struct {
	tablet  *tablet.Tablet
	merger  *Merger
	fetcher replication.PeerFetcher
	logger  *logging.Logger

	candidates []*rowset.Rowset
	span       rowset.Version
	prepared   bool
}

// NewSingleReplicaTask creates a single-replica compaction task for t.
func NewSingleReplicaTask(t *tablet.Tablet, merger *Merger, fetcher replication.PeerFetcher, logger *logging.Logger) *SingleReplicaTask {
	return &SingleReplicaTask{
		tablet:  t,
		merger:  merger,
		fetcher: fetcher,
		logger:  logger.WithTablet(t.ID(), t.TableID()),
	}
}

func (s *SingleReplicaTask) Kind() Kind             { return KindSingleReplica }
func (s *SingleReplicaTask) Tablet() *tablet.Tablet { return s.tablet }

// Prepare verifies the tablet's replication role before touching any lock,
// then takes the cumulative lock and pins the current cumulative run.
func (s *SingleReplicaTask) Prepare(ctx context.Context) error {
	if !s.tablet.ShouldFetchFromPeer() {
		return fmt.Errorf("tablet_id=%d: %w", s.tablet.ID(), ErrPeerFetchNotAllowed)
	}

	locks := s.tablet.Locks()
	if !locks.TryLockCumulative() {
		return ErrLockConflict
	}

	candidates := s.tablet.CumulativeRowsets()
	if len(candidates) < 2 {
		locks.UnlockCumulative()
		return ErrNoSuitableVersion
	}

	s.candidates = candidates
	s.span = InputSpan(candidates)
	s.prepared = true
	return nil
}

// Execute fetches the peer's merged rowset for the pinned span and publishes
// it locally. The payload is already in the shared object store; nothing is
// merged here.
func (s *SingleReplicaTask) Execute(ctx context.Context) error {
	if !s.prepared {
		return ErrNotPrepared
	}
	defer func() {
		s.prepared = false
		s.tablet.Locks().UnlockCumulative()
	}()

	fetched, err := s.fetcher.FetchMerged(ctx, s.tablet.ID(), s.span)
	if err != nil {
		s.tablet.RecordFailure(time.Now())
		return fmt.Errorf("%w: fetch from peer: %v", ErrMergeFailed, err)
	}
	fetched.TabletID = s.tablet.ID()

	if err := s.tablet.Chain().Replace(fetched); err != nil {
		s.tablet.RecordFailure(time.Now())
		return fmt.Errorf("%w: publish fetched rowset: %v", ErrMergeFailed, err)
	}
	s.merger.cleanupInputs(ctx, s.candidates)

	s.tablet.AdvanceCumulativePoint(fetched.Version.End + 1)
	s.tablet.RecordSuccess("cumulative", time.Now())
	s.logger.Info("single replica compaction finished",
		"span", fetched.Version.String(),
		"input_rowsets", len(s.candidates),
		"fetched_rowset", fetched.ID,
	)
	return nil
}
