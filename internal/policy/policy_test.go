package policy

import (
	"testing"
	"time"

	"github.com/granitedb/granite/internal/rowset"
)

func sized(start int64, size int64) *rowset.Rowset {
	return &rowset.Rowset{
		ID:       rowset.NewID(),
		Version:  rowset.Version{Start: start, End: start},
		DataSize: size,
	}
}

func createdAt(start int64, at time.Time) *rowset.Rowset {
	return &rowset.Rowset{
		ID:        rowset.NewID(),
		Version:   rowset.Version{Start: start, End: start},
		DataSize:  100,
		CreatedAt: at,
	}
}

func TestForName(t *testing.T) {
	cases := []struct {
		name     string
		wantName string
		wantErr  bool
	}{
		{"", SizeTieredName, false},
		{"size_tiered", SizeTieredName, false},
		{"time_series", TimeSeriesName, false},
		{"bogus", "", true},
	}
	for _, tc := range cases {
		p, err := ForName(tc.name, Params{})
		if tc.wantErr {
			if err == nil {
				t.Errorf("ForName(%q): want error, got %v", tc.name, p.Name())
			}
			continue
		}
		if err != nil {
			t.Errorf("ForName(%q) failed: %v", tc.name, err)
			continue
		}
		if p.Name() != tc.wantName {
			t.Errorf("ForName(%q): got %q, want %q", tc.name, p.Name(), tc.wantName)
		}
	}
}

func TestSizeTieredSelectsSmallestTier(t *testing.T) {
	p := NewSizeTiered(Params{TierRatio: 2.0, MinRun: 3})

	rowsets := []*rowset.Rowset{
		sized(10, 100), sized(11, 110), sized(12, 105),
		sized(13, 1000),
		sized(14, 10), sized(15, 12), sized(16, 11), sized(17, 13),
	}

	got := p.SelectCandidates(rowsets)
	if len(got) != 4 {
		t.Fatalf("candidate count: got %d, want 4", len(got))
	}
	if got[0].Version.Start != 14 || got[3].Version.Start != 17 {
		t.Errorf("wrong tier selected: %s..%s", got[0].Version, got[3].Version)
	}
}

func TestSizeTieredNothingQualifies(t *testing.T) {
	p := NewSizeTiered(Params{TierRatio: 2.0, MinRun: 3})

	// Each rowset is its own tier; no run reaches the minimum length.
	rowsets := []*rowset.Rowset{
		sized(10, 10), sized(11, 100), sized(12, 1000), sized(13, 10000),
	}
	if got := p.SelectCandidates(rowsets); got != nil {
		t.Errorf("want no candidates, got %d", len(got))
	}

	if got := p.SelectCandidates(rowsets[:2]); got != nil {
		t.Errorf("short chain: want no candidates, got %d", len(got))
	}
}

func TestTimeSeriesPrefersNewestWindow(t *testing.T) {
	p := NewTimeSeries(Params{MinRun: 3, WindowSeconds: 3600})

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rowsets := []*rowset.Rowset{
		createdAt(10, base),
		createdAt(11, base.Add(5*time.Minute)),
		createdAt(12, base.Add(10*time.Minute)),
		createdAt(13, base.Add(2*time.Hour)),
		createdAt(14, base.Add(2*time.Hour+time.Minute)),
	}

	// The newest window holds only two rowsets, so the older full window wins.
	got := p.SelectCandidates(rowsets)
	if len(got) != 3 {
		t.Fatalf("candidate count: got %d, want 3", len(got))
	}
	if got[0].Version.Start != 10 || got[2].Version.Start != 12 {
		t.Errorf("wrong window selected: %s..%s", got[0].Version, got[2].Version)
	}
}

func TestTimeSeriesNewestWindowWins(t *testing.T) {
	p := NewTimeSeries(Params{MinRun: 2, WindowSeconds: 3600})

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rowsets := []*rowset.Rowset{
		createdAt(10, base),
		createdAt(11, base.Add(time.Minute)),
		createdAt(12, base.Add(3*time.Hour)),
		createdAt(13, base.Add(3*time.Hour+time.Minute)),
	}

	got := p.SelectCandidates(rowsets)
	if len(got) != 2 {
		t.Fatalf("candidate count: got %d, want 2", len(got))
	}
	if got[0].Version.Start != 12 {
		t.Errorf("want newest window, got start %s", got[0].Version)
	}
}
