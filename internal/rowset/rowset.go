// Package rowset defines immutable, versioned data segments and the
// per-tablet version chain that orders them.
package rowset

import (
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"
)

// Version is an inclusive range of data versions covered by one rowset.
type Version struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Valid reports whether the range is well formed.
func (v Version) Valid() bool {
	return v.Start >= 0 && v.End >= v.Start
}

// Precedes reports whether next starts exactly where v ends.
func (v Version) Precedes(next Version) bool {
	return next.Start == v.End+1
}

// Contains reports whether other lies entirely within v.
func (v Version) Contains(other Version) bool {
	return v.Start <= other.Start && other.End <= v.End
}

func (v Version) String() string {
	return fmt.Sprintf("[%d-%d]", v.Start, v.End)
}

// Rowset is an immutable, versioned data segment. It is never mutated after
// creation, only superseded by a merged rowset covering its version range.
type Rowset struct {
	ID           string    `json:"id"`
	TabletID     int64     `json:"tablet_id"`
	Version      Version   `json:"version"`
	RowCount     int64     `json:"row_count"`
	DataSize     int64     `json:"data_size"`
	SegmentCount int       `json:"segment_count"`
	CreatedAt    time.Time `json:"created_at"`

	// DataKey is the object store key holding the encoded row block.
	DataKey string `json:"data_key"`

	// DeleteBitmap marks row ordinals superseded by later overwrites.
	// Nil means no rows are marked.
	DeleteBitmap *roaring.Bitmap `json:"-"`
}

// NewID returns a fresh rowset identifier.
func NewID() string {
	return uuid.NewString()
}

// DataKey returns the object store key for a rowset payload.
func DataKey(tabletID int64, rowsetID string) string {
	return fmt.Sprintf("granite/tablets/%d/rowsets/%s", tabletID, rowsetID)
}

// TabletPrefix returns the object store prefix holding all of a tablet's
// rowset payloads.
func TabletPrefix(tabletID int64) string {
	return fmt.Sprintf("granite/tablets/%d/", tabletID)
}

// LiveRows returns the row count minus delete-bitmap marked rows.
func (r *Rowset) LiveRows() int64 {
	if r.DeleteBitmap == nil {
		return r.RowCount
	}
	live := r.RowCount - int64(r.DeleteBitmap.GetCardinality())
	if live < 0 {
		return 0
	}
	return live
}

// MarkDeleted records a row ordinal as superseded. The payload itself stays
// untouched; only the bitmap changes.
func (r *Rowset) MarkDeleted(ordinal uint32) {
	if r.DeleteBitmap == nil {
		r.DeleteBitmap = roaring.New()
	}
	r.DeleteBitmap.Add(ordinal)
}

// RowDeleted reports whether a row ordinal is marked in the delete bitmap.
func (r *Rowset) RowDeleted(ordinal uint32) bool {
	return r.DeleteBitmap != nil && r.DeleteBitmap.Contains(ordinal)
}
