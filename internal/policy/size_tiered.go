package policy

import (
	"github.com/granitedb/granite/internal/rowset"
)

// SizeTiered groups adjacent rowsets whose sizes fall within a configured
// ratio of each other and picks the smallest qualifying run. Merging
// similarly sized neighbors bounds write amplification while still driving
// the segment count down.
type SizeTiered struct {
	params Params
}

// NewSizeTiered creates a size-tiered policy.
func NewSizeTiered(params Params) *SizeTiered {
	return &SizeTiered{params: params}
}

func (p *SizeTiered) Name() string { return SizeTieredName }

// SelectCandidates scans adjacent runs whose neighboring sizes stay within
// the tier ratio and returns the run with the smallest total size among
// those reaching the minimum length. Empty when nothing qualifies.
func (p *SizeTiered) SelectCandidates(rowsets []*rowset.Rowset) []*rowset.Rowset {
	minRun := p.params.minRun()
	ratio := p.params.tierRatio()
	if len(rowsets) < minRun {
		return nil
	}

	var best []*rowset.Rowset
	var bestBytes int64

	runStart := 0
	for i := 1; i <= len(rowsets); i++ {
		if i < len(rowsets) && sameTier(rowsets[i-1], rowsets[i], ratio) {
			continue
		}
		if run := rowsets[runStart:i]; len(run) >= minRun {
			runBytes := totalBytes(run)
			if best == nil || runBytes < bestBytes {
				best = run
				bestBytes = runBytes
			}
		}
		runStart = i
	}
	return best
}

// sameTier reports whether two adjacent rowsets belong to one size tier.
// Empty rowsets always group together.
func sameTier(a, b *rowset.Rowset, ratio float64) bool {
	small, large := a.DataSize, b.DataSize
	if small > large {
		small, large = large, small
	}
	if small == 0 {
		return large == 0 || float64(large) <= ratio
	}
	return float64(large) <= float64(small)*ratio
}

func totalBytes(run []*rowset.Rowset) int64 {
	var total int64
	for _, rs := range run {
		total += rs.DataSize
	}
	return total
}
