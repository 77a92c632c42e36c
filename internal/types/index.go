package types

import (
	"fmt"
	"math"
	"time"
)

// CompositeIndex is a total-order key over ledger facts and events. Ordering is
// primary on Timestamp (nanosecond precision) and tie-broken by Sequence, so two
// facts recorded at the same instant still have a deterministic order. It is a
// pure ordering token and never implies ownership of the fact it keys.
type CompositeIndex struct {
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	Sequence  uint64    `yaml:"sequence" json:"sequence"`
}

// NewIndex returns the smallest index at the given timestamp (sequence 0).
func NewIndex(timestamp time.Time) CompositeIndex {
	return CompositeIndex{
		Timestamp: timestamp,
		Sequence:  0,
	}
}

// MaxIndex returns an index that compares greater than every real index at the
// given timestamp. Used as an exclusive upper bound for range queries.
func MaxIndex(timestamp time.Time) CompositeIndex {
	return CompositeIndex{
		Timestamp: timestamp,
		Sequence:  math.MaxUint64,
	}
}

// LatestIndex returns an index that compares greater than any index assigned
// so far, used to query the most recent state.
func LatestIndex() CompositeIndex {
	return MaxIndex(time.Now().UTC())
}

// Next returns the index with the sequence bumped by one. The sequence
// saturates at MaxUint64 instead of wrapping, since a wrap would break the
// total order.
func (i CompositeIndex) Next() CompositeIndex {
	if i.Sequence == math.MaxUint64 {
		return i
	}

	return CompositeIndex{
		Timestamp: i.Timestamp,
		Sequence:  i.Sequence + 1,
	}
}

// Compare returns -1, 0 or 1 if i orders before, equal to, or after other.
func (i CompositeIndex) Compare(other CompositeIndex) int {
	if i.Timestamp.Before(other.Timestamp) {
		return -1
	}

	if i.Timestamp.After(other.Timestamp) {
		return 1
	}

	switch {
	case i.Sequence < other.Sequence:
		return -1
	case i.Sequence > other.Sequence:
		return 1
	default:
		return 0
	}
}

// Before reports whether i orders strictly before other.
func (i CompositeIndex) Before(other CompositeIndex) bool {
	return i.Compare(other) < 0
}

// After reports whether i orders strictly after other.
func (i CompositeIndex) After(other CompositeIndex) bool {
	return i.Compare(other) > 0
}

// IsZero reports whether the index is the zero value (no index assigned yet).
func (i CompositeIndex) IsZero() bool {
	return i.Timestamp.IsZero() && i.Sequence == 0
}

// String implements fmt.Stringer.
func (i CompositeIndex) String() string {
	return fmt.Sprintf("%d@%d", i.Timestamp.UnixNano(), i.Sequence)
}
