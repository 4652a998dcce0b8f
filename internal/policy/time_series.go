package policy

import (
	"github.com/granitedb/granite/internal/rowset"
)

// TimeSeries groups adjacent rowsets whose creation times fall into the same
// time bucket and prefers the most recently written qualifying group. For
// time-ordered workloads queries fan out over the newest rowsets, so keeping
// that end of the chain compact matters more than total size.
type TimeSeries struct {
	params Params
}

// NewTimeSeries creates a time-series policy.
func NewTimeSeries(params Params) *TimeSeries {
	return &TimeSeries{params: params}
}

func (p *TimeSeries) Name() string { return TimeSeriesName }

// SelectCandidates walks the chain from newest to oldest and returns the
// first (most recent) adjacent group sharing a creation-time bucket that
// reaches the minimum run length. Empty when nothing qualifies.
func (p *TimeSeries) SelectCandidates(rowsets []*rowset.Rowset) []*rowset.Rowset {
	minRun := p.params.minRun()
	window := p.params.windowSeconds()
	if len(rowsets) < minRun {
		return nil
	}

	runEnd := len(rowsets)
	for i := len(rowsets) - 1; i >= 0; i-- {
		if i > 0 && bucketOf(rowsets[i-1], window) == bucketOf(rowsets[i], window) {
			continue
		}
		if run := rowsets[i:runEnd]; len(run) >= minRun {
			return run
		}
		runEnd = i
	}
	return nil
}

func bucketOf(rs *rowset.Rowset, windowSeconds int64) int64 {
	return rs.CreatedAt.Unix() / windowSeconds
}
