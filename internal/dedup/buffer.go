package dedup

import "backend-fogtrek/internal/shared/geo"

const (
	// DefaultCapacity bounds the retained-fix buffer; oldest entries are
	// evicted first.
	DefaultCapacity = 1000

	// MinDistanceM and WindowMs define the duplicate zone: a fix strictly
	// closer than MinDistanceM AND strictly newer than WindowMs relative to
	// the last retained fix is dropped. A user loitering past the window has
	// their repeated position retained again.
	MinDistanceM = 10.0
	WindowMs     = 30000
)

// Buffer is a bounded FIFO of retained fixes. It is not safe for concurrent
// use; the ingestion path must serialize access.
type Buffer struct {
	fixes    []geo.GeoFix
	capacity int
}

func New() *Buffer {
	return NewWithCapacity(DefaultCapacity)
}

func NewWithCapacity(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{capacity: capacity}
}

// Offer retains the fix unless it duplicates the most recently retained one.
// Returns whether the fix was retained.
func (b *Buffer) Offer(fix geo.GeoFix) bool {
	if last, ok := b.Latest(); ok {
		dt := fix.Timestamp - last.Timestamp
		if dt < 0 {
			dt = -dt
		}
		if dt < WindowMs && geo.Distance(last, fix) < MinDistanceM {
			return false
		}
	}

	b.fixes = append(b.fixes, fix)
	if len(b.fixes) > b.capacity {
		b.fixes = b.fixes[len(b.fixes)-b.capacity:]
	}
	return true
}

func (b *Buffer) Latest() (geo.GeoFix, bool) {
	if len(b.fixes) == 0 {
		return geo.GeoFix{}, false
	}
	return b.fixes[len(b.fixes)-1], true
}

func (b *Buffer) First() (geo.GeoFix, bool) {
	if len(b.fixes) == 0 {
		return geo.GeoFix{}, false
	}
	return b.fixes[0], true
}

func (b *Buffer) Len() int {
	return len(b.fixes)
}

// Fixes returns a copy of the retained fixes in arrival order.
func (b *Buffer) Fixes() []geo.GeoFix {
	out := make([]geo.GeoFix, len(b.fixes))
	copy(out, b.fixes)
	return out
}

func (b *Buffer) Clear() {
	b.fixes = nil
}
