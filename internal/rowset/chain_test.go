package rowset

import (
	"errors"
	"testing"
)

func rs(start, end int64) *Rowset {
	return &Rowset{
		ID:       NewID(),
		Version:  Version{Start: start, End: end},
		RowCount: end - start + 1,
		DataSize: (end - start + 1) * 10,
	}
}

func mustChain(t *testing.T, rowsets ...*Rowset) *Chain {
	t.Helper()
	c, err := NewChain(rowsets...)
	if err != nil {
		t.Fatalf("NewChain failed: %v", err)
	}
	return c
}

func TestChainAppend(t *testing.T) {
	c := mustChain(t, rs(0, 1))

	if err := c.Append(rs(2, 5)); err != nil {
		t.Fatalf("contiguous append failed: %v", err)
	}

	if err := c.Append(rs(8, 9)); !errors.Is(err, ErrChainGap) {
		t.Errorf("gap append: want ErrChainGap, got %v", err)
	}
	if err := c.Append(rs(4, 7)); !errors.Is(err, ErrChainOverlap) {
		t.Errorf("overlap append: want ErrChainOverlap, got %v", err)
	}
	if err := c.Append(&Rowset{Version: Version{Start: 5, End: 3}}); !errors.Is(err, ErrInvalidRowset) {
		t.Errorf("invalid version append: want ErrInvalidRowset, got %v", err)
	}

	if got := c.MaxVersion(); got != 5 {
		t.Errorf("MaxVersion: got %d, want 5", got)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate after failed appends: %v", err)
	}
}

func TestChainMustStartAtZero(t *testing.T) {
	c := &Chain{}
	if err := c.Append(rs(3, 5)); !errors.Is(err, ErrChainGap) {
		t.Errorf("first append at nonzero start: want ErrChainGap, got %v", err)
	}
}

func TestChainReplace(t *testing.T) {
	c := mustChain(t, rs(0, 1), rs(2, 2), rs(3, 4), rs(5, 7))

	merged := rs(2, 4)
	if err := c.Replace(merged); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	snapshot := c.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("chain length after replace: got %d, want 3", len(snapshot))
	}
	if snapshot[1] != merged {
		t.Errorf("merged rowset not in place: got %s", snapshot[1].Version)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate after replace: %v", err)
	}
}

func TestChainReplaceMisalignedSpan(t *testing.T) {
	c := mustChain(t, rs(0, 1), rs(2, 4), rs(5, 7))

	// 3-5 crosses rowset boundaries on both sides.
	if err := c.Replace(rs(3, 5)); !errors.Is(err, ErrSpanNotFound) {
		t.Errorf("misaligned replace: want ErrSpanNotFound, got %v", err)
	}
	if got := c.Len(); got != 3 {
		t.Errorf("chain changed by failed replace: len %d, want 3", got)
	}
}

func TestChainRun(t *testing.T) {
	c := mustChain(t, rs(0, 1), rs(2, 2), rs(3, 4), rs(5, 7))

	run, err := c.Run(Version{Start: 2, End: 4})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(run) != 2 || run[0].Version.Start != 2 || run[1].Version.End != 4 {
		t.Errorf("Run returned wrong rowsets: %v", run)
	}

	if _, err := c.Run(Version{Start: 1, End: 4}); !errors.Is(err, ErrSpanNotFound) {
		t.Errorf("misaligned run: want ErrSpanNotFound, got %v", err)
	}
}

func TestChainTotals(t *testing.T) {
	c := mustChain(t, rs(0, 1), rs(2, 4))
	if got := c.TotalRows(); got != 5 {
		t.Errorf("TotalRows: got %d, want 5", got)
	}
	if got := c.TotalBytes(); got != 50 {
		t.Errorf("TotalBytes: got %d, want 50", got)
	}
}
