package compaction

import (
	"context"
	"time"

	"github.com/granitedb/granite/internal/logging"
	"github.com/granitedb/granite/internal/policy"
	"github.com/granitedb/granite/internal/rowset"
	"github.com/granitedb/granite/internal/tablet"
)

// CumulativeTask merges a policy-selected run of rowsets above the cumulative
// point and advances the point past the merged output.
type CumulativeTask struct {
	tablet *tablet.Tablet
	merger *Merger
	logger *logging.Logger

	defaultPolicy string
	params        policy.Params

	candidates []*rowset.Rowset
	prepared   bool
}

// NewCumulativeTask creates a cumulative compaction task for t. The tablet's
// persisted policy name wins; defaultPolicy fills in when the metadata names
// none.
func NewCumulativeTask(t *tablet.Tablet, merger *Merger, logger *logging.Logger, defaultPolicy string, params policy.Params) *CumulativeTask {
	return &CumulativeTask{
		tablet:        t,
		merger:        merger,
		logger:        logger.WithTablet(t.ID(), t.TableID()),
		defaultPolicy: defaultPolicy,
		params:        params,
	}
}

func (c *CumulativeTask) Kind() Kind             { return KindCumulative }
func (c *CumulativeTask) Tablet() *tablet.Tablet { return c.tablet }

// Prepare takes the cumulative lock, binds the tablet's policy on first use,
// and asks it for candidates.
func (c *CumulativeTask) Prepare(ctx context.Context) error {
	locks := c.tablet.Locks()
	if !locks.TryLockCumulative() {
		return ErrLockConflict
	}

	bound, err := c.bindPolicy()
	if err != nil {
		locks.UnlockCumulative()
		return err
	}

	candidates := bound.SelectCandidates(c.tablet.CumulativeRowsets())
	if len(candidates) == 0 {
		locks.UnlockCumulative()
		return ErrNoSuitableVersion
	}

	c.candidates = candidates
	c.prepared = true
	return nil
}

func (c *CumulativeTask) bindPolicy() (policy.CumulativePolicy, error) {
	if bound := c.tablet.Policy(); bound != nil {
		return bound, nil
	}
	name := c.tablet.Meta().Policy
	if name == "" {
		name = c.defaultPolicy
	}
	pol, err := policy.ForName(name, c.params)
	if err != nil {
		return nil, err
	}
	return c.tablet.BindPolicyOnce(pol), nil
}

// Execute merges the selected run, publishes the result, and moves the
// cumulative point to just past the merged span.
func (c *CumulativeTask) Execute(ctx context.Context) error {
	if !c.prepared {
		return ErrNotPrepared
	}
	defer func() {
		c.prepared = false
		c.tablet.Locks().UnlockCumulative()
	}()

	merged, stats, err := c.merger.Merge(ctx, c.tablet, KindCumulative, c.candidates)
	if err != nil {
		c.tablet.RecordFailure(time.Now())
		return err
	}

	c.tablet.AdvanceCumulativePoint(merged.Version.End + 1)
	c.tablet.RecordSuccess("cumulative", time.Now())
	c.logger.Info("cumulative compaction finished",
		"span", merged.Version.String(),
		"policy", c.tablet.Policy().Name(),
		"input_rowsets", stats.InputRowsets,
		"input_rows", stats.InputRows,
		"output_rows", stats.OutputRows,
		"output_bytes", stats.OutputBytes,
		"duration_ms", stats.Duration.Milliseconds(),
	)
	return nil
}
