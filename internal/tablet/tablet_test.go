package tablet

import (
	"errors"
	"testing"
	"time"

	"github.com/granitedb/granite/internal/policy"
	"github.com/granitedb/granite/internal/rowset"
)

func testRowset(start, end int64) *rowset.Rowset {
	return &rowset.Rowset{
		ID:      rowset.NewID(),
		Version: rowset.Version{Start: start, End: end},
	}
}

func testTablet(t *testing.T, spans ...[2]int64) *Tablet {
	t.Helper()
	var rowsets []*rowset.Rowset
	for _, span := range spans {
		rowsets = append(rowsets, testRowset(span[0], span[1]))
	}
	chain, err := rowset.NewChain(rowsets...)
	if err != nil {
		t.Fatalf("NewChain failed: %v", err)
	}
	return New(Meta{TabletID: 1001, TableID: 42}, chain)
}

func TestCumulativePointStartsAfterFirstRowset(t *testing.T) {
	tab := testTablet(t, [2]int64{0, 5}, [2]int64{6, 6}, [2]int64{7, 9})
	if got := tab.CumulativePoint(); got != 6 {
		t.Errorf("initial cumulative point: got %d, want 6", got)
	}

	base := tab.BaseRowsets()
	if len(base) != 1 || base[0].Version.End != 5 {
		t.Errorf("base level wrong: %v", base)
	}
	cumulative := tab.CumulativeRowsets()
	if len(cumulative) != 2 || cumulative[0].Version.Start != 6 {
		t.Errorf("cumulative level wrong: %v", cumulative)
	}
}

func TestAdvanceCumulativePointForwardOnly(t *testing.T) {
	tab := testTablet(t, [2]int64{0, 5}, [2]int64{6, 9})

	tab.AdvanceCumulativePoint(10)
	if got := tab.CumulativePoint(); got != 10 {
		t.Errorf("advance: got %d, want 10", got)
	}
	tab.AdvanceCumulativePoint(3)
	if got := tab.CumulativePoint(); got != 10 {
		t.Errorf("backward move applied: got %d, want 10", got)
	}
}

func TestBindPolicyOnce(t *testing.T) {
	tab := testTablet(t, [2]int64{0, 5})
	if tab.Policy() != nil {
		t.Fatal("policy bound before first use")
	}

	first := policy.NewSizeTiered(policy.Params{})
	second := policy.NewTimeSeries(policy.Params{})

	if got := tab.BindPolicyOnce(first); got != policy.CumulativePolicy(first) {
		t.Errorf("first bind returned %v", got.Name())
	}
	if got := tab.BindPolicyOnce(second); got.Name() != policy.SizeTieredName {
		t.Errorf("rebind replaced policy: got %q", got.Name())
	}
}

func TestManager(t *testing.T) {
	m := NewManager()
	a := testTablet(t, [2]int64{0, 1})
	m.Add(a)

	got, err := m.Get(a.ID())
	if err != nil || got != a {
		t.Fatalf("Get: got %v, %v", got, err)
	}

	if _, err := m.Get(9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown tablet: want ErrNotFound, got %v", err)
	}

	m.Drop(a.ID())
	if _, err := m.Get(a.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("dropped tablet still found: %v", err)
	}
}

func TestRunStatusPriority(t *testing.T) {
	tab := testTablet(t, [2]int64{0, 1}, [2]int64{2, 3})

	if got := tab.RunStatus(); got != RunNone {
		t.Fatalf("idle tablet: got %s, want %s", got, RunNone)
	}

	// Base running.
	if !tab.Locks().TryLockBase() {
		t.Fatal("could not take base lock")
	}
	if got := tab.RunStatus(); got != RunBase {
		t.Errorf("base held: got %s, want %s", got, RunBase)
	}

	// Cumulative outranks base in the report.
	if !tab.Locks().TryLockCumulative() {
		t.Fatal("could not take cumulative lock")
	}
	if got := tab.RunStatus(); got != RunCumulative {
		t.Errorf("both held: got %s, want %s", got, RunCumulative)
	}

	// The full flag outranks everything, even with level locks held.
	if !tab.Locks().TryStartFull() {
		t.Fatal("could not set full flag")
	}
	if got := tab.RunStatus(); got != RunFull {
		t.Errorf("full flag set: got %s, want %s", got, RunFull)
	}

	tab.Locks().FinishFull()
	tab.Locks().UnlockCumulative()
	tab.Locks().UnlockBase()
	if got := tab.RunStatus(); got != RunNone {
		t.Errorf("after release: got %s, want %s", got, RunNone)
	}
}

func TestRunStatusProbeReleasesLocks(t *testing.T) {
	tab := testTablet(t, [2]int64{0, 1})

	// Probing twice must not deadlock or leave locks held.
	for i := 0; i < 2; i++ {
		if got := tab.RunStatus(); got != RunNone {
			t.Fatalf("probe %d: got %s, want %s", i, got, RunNone)
		}
	}
	if !tab.Locks().TryLockBase() {
		t.Error("base lock left held by status probe")
	}
	tab.Locks().UnlockBase()
}

func TestLockSetConflicts(t *testing.T) {
	var locks LockSet

	if !locks.TryLockBase() {
		t.Fatal("fresh base lock unavailable")
	}
	if locks.TryLockBase() {
		t.Fatal("base lock acquired twice")
	}
	locks.UnlockBase()
	if !locks.TryLockBase() {
		t.Fatal("base lock not released")
	}
	locks.UnlockBase()

	if !locks.TryStartFull() {
		t.Fatal("fresh full flag unavailable")
	}
	if locks.TryStartFull() {
		t.Fatal("full flag set twice")
	}
	locks.FinishFull()
	if locks.FullRunning() {
		t.Fatal("full flag not cleared")
	}
}

func TestStatusSnapshot(t *testing.T) {
	tab := testTablet(t, [2]int64{0, 5}, [2]int64{6, 8})
	tab.RecordSuccess("cumulative", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	status := tab.Status()
	if status.TabletID != 1001 || status.TableID != 42 {
		t.Errorf("identity wrong: %+v", status)
	}
	if status.RowsetCount != 2 || status.MaxVersion != 8 {
		t.Errorf("chain summary wrong: %+v", status)
	}
	if status.CumulativePoint != 6 {
		t.Errorf("cumulative point: got %d, want 6", status.CumulativePoint)
	}
	if status.LastCumulativeSuccess.IsZero() {
		t.Error("last cumulative success not recorded")
	}
	if len(status.Rowsets) != 2 {
		t.Errorf("rowset list: got %d entries, want 2", len(status.Rowsets))
	}
}
