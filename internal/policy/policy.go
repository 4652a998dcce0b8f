// Package policy implements cumulative compaction candidate selection.
package policy

import (
	"fmt"

	"github.com/granitedb/granite/internal/rowset"
)

// Policy names persisted in tablet metadata.
const (
	SizeTieredName = "size_tiered"
	TimeSeriesName = "time_series"
)

// CumulativePolicy selects a contiguous run of cumulative-level rowsets to
// merge. An empty result means nothing qualifies right now; that is a benign
// outcome, not an error.
type CumulativePolicy interface {
	Name() string
	SelectCandidates(rowsets []*rowset.Rowset) []*rowset.Rowset
}

// Params tunes candidate selection. Zero values fall back to defaults.
type Params struct {
	// TierRatio is the maximum size ratio between adjacent rowsets that
	// still land in the same size tier.
	TierRatio float64

	// MinRun is the minimum run length a candidate group must reach.
	MinRun int

	// WindowSeconds buckets rowsets by creation time for the time-series
	// policy.
	WindowSeconds int64
}

func (p Params) tierRatio() float64 {
	if p.TierRatio <= 1 {
		return 2.0
	}
	return p.TierRatio
}

func (p Params) minRun() int {
	if p.MinRun <= 1 {
		return 3
	}
	return p.MinRun
}

func (p Params) windowSeconds() int64 {
	if p.WindowSeconds <= 0 {
		return 3600
	}
	return p.WindowSeconds
}

// ForName creates the policy persisted under name. Policies are bound to a
// tablet once; changing policy means rebinding, not mutating.
func ForName(name string, params Params) (CumulativePolicy, error) {
	switch name {
	case "", SizeTieredName:
		return NewSizeTiered(params), nil
	case TimeSeriesName:
		return NewTimeSeries(params), nil
	default:
		return nil, fmt.Errorf("unknown compaction policy %q", name)
	}
}
