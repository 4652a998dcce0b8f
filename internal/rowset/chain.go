package rowset

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrChainGap      = errors.New("version chain has a gap")
	ErrChainOverlap  = errors.New("version chain has overlapping versions")
	ErrSpanNotFound  = errors.New("version span not covered by a contiguous run")
	ErrInvalidRowset = errors.New("invalid rowset")
)

// Chain is the ordered, gap-free sequence of rowsets covering a tablet's
// version history. Publishing a merge result swaps the source run for the
// merged rowset in one step; readers never observe a partial chain.
type Chain struct {
	mu      sync.RWMutex
	rowsets []*Rowset
}

// NewChain creates a chain from rowsets already ordered by version.
// The rowsets must form a contiguous cover.
func NewChain(rowsets ...*Rowset) (*Chain, error) {
	c := &Chain{}
	for _, rs := range rowsets {
		if err := c.Append(rs); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Append extends the chain with a rowset starting at max_version+1.
func (c *Chain) Append(rs *Rowset) error {
	if rs == nil || !rs.Version.Valid() {
		return ErrInvalidRowset
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.rowsets) > 0 {
		last := c.rowsets[len(c.rowsets)-1]
		if !last.Version.Precedes(rs.Version) {
			if rs.Version.Start <= last.Version.End {
				return fmt.Errorf("%w: %s after %s", ErrChainOverlap, rs.Version, last.Version)
			}
			return fmt.Errorf("%w: %s after %s", ErrChainGap, rs.Version, last.Version)
		}
	} else if rs.Version.Start != 0 {
		return fmt.Errorf("%w: chain must start at version 0, got %s", ErrChainGap, rs.Version)
	}
	c.rowsets = append(c.rowsets, rs)
	return nil
}

// Snapshot returns a copy of the current rowset sequence.
func (c *Chain) Snapshot() []*Rowset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Rowset, len(c.rowsets))
	copy(out, c.rowsets)
	return out
}

// Len returns the number of rowsets in the chain.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rowsets)
}

// MaxVersion returns the highest version covered, or -1 for an empty chain.
func (c *Chain) MaxVersion() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.rowsets) == 0 {
		return -1
	}
	return c.rowsets[len(c.rowsets)-1].Version.End
}

// Replace atomically swaps the contiguous run covering exactly
// merged.Version for the merged rowset. The swap happens under the chain
// lock: a reader sampling before and after never sees the old rowsets gone
// without the merged one present.
func (c *Chain) Replace(merged *Rowset) error {
	if merged == nil || !merged.Version.Valid() {
		return ErrInvalidRowset
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	start, end := -1, -1
	for i, rs := range c.rowsets {
		if rs.Version.Start == merged.Version.Start {
			start = i
		}
		if rs.Version.End == merged.Version.End {
			end = i
			break
		}
	}
	if start < 0 || end < 0 || end < start {
		return fmt.Errorf("%w: %s", ErrSpanNotFound, merged.Version)
	}

	replaced := make([]*Rowset, 0, len(c.rowsets)-(end-start))
	replaced = append(replaced, c.rowsets[:start]...)
	replaced = append(replaced, merged)
	replaced = append(replaced, c.rowsets[end+1:]...)
	c.rowsets = replaced
	return nil
}

// Run returns the contiguous sub-sequence covering exactly span, or
// ErrSpanNotFound when the span does not align with rowset boundaries.
func (c *Chain) Run(span Version) ([]*Rowset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var run []*Rowset
	for _, rs := range c.rowsets {
		if rs.Version.Start < span.Start {
			continue
		}
		if rs.Version.End > span.End {
			break
		}
		run = append(run, rs)
	}
	if len(run) == 0 || run[0].Version.Start != span.Start || run[len(run)-1].Version.End != span.End {
		return nil, fmt.Errorf("%w: %s", ErrSpanNotFound, span)
	}
	for i := 1; i < len(run); i++ {
		if !run[i-1].Version.Precedes(run[i].Version) {
			return nil, fmt.Errorf("%w: %s", ErrSpanNotFound, span)
		}
	}
	return run, nil
}

// Validate checks the whole chain for gaps and overlaps.
func (c *Chain) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := 1; i < len(c.rowsets); i++ {
		prev, cur := c.rowsets[i-1], c.rowsets[i]
		if cur.Version.Start <= prev.Version.End {
			return fmt.Errorf("%w: %s then %s", ErrChainOverlap, prev.Version, cur.Version)
		}
		if !prev.Version.Precedes(cur.Version) {
			return fmt.Errorf("%w: %s then %s", ErrChainGap, prev.Version, cur.Version)
		}
	}
	return nil
}

// TotalRows sums row counts across the chain.
func (c *Chain) TotalRows() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, rs := range c.rowsets {
		total += rs.RowCount
	}
	return total
}

// TotalBytes sums payload sizes across the chain.
func (c *Chain) TotalBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, rs := range c.rowsets {
		total += rs.DataSize
	}
	return total
}
