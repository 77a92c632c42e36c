package types

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type CompositeIndexTestSuite struct {
	suite.Suite
}

func TestCompositeIndexSuite(t *testing.T) {
	suite.Run(t, new(CompositeIndexTestSuite))
}

func (suite *CompositeIndexTestSuite) TestOrdering() {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Nanosecond)

	a := NewIndex(t0)
	b := a.Next()
	c := NewIndex(t1)

	suite.Equal(-1, a.Compare(b))
	suite.Equal(1, b.Compare(a))
	suite.Equal(0, a.Compare(a))
	suite.True(b.Before(c))
	suite.True(c.After(b))
}

func (suite *CompositeIndexTestSuite) TestMaxIndexBoundsEqualTimestamps() {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first := NewIndex(t0)
	second := first.Next()
	bound := MaxIndex(t0)

	suite.True(bound.After(first))
	suite.True(bound.After(second))
	suite.True(NewIndex(t0.Add(time.Nanosecond)).After(bound))
}

func (suite *CompositeIndexTestSuite) TestLatestIndexBoundsEveryAssignedIndex() {
	assigned := NewIndex(time.Now().UTC()).Next()
	bound := LatestIndex()

	suite.True(bound.After(assigned))
	suite.Equal(uint64(math.MaxUint64), bound.Sequence)
}

func (suite *CompositeIndexTestSuite) TestNextSaturates() {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	idx := MaxIndex(t0)

	next := idx.Next()

	suite.Equal(uint64(math.MaxUint64), next.Sequence)
	suite.Equal(0, idx.Compare(next))
}

func (suite *CompositeIndexTestSuite) TestIsZero() {
	suite.True(CompositeIndex{}.IsZero())
	suite.False(NewIndex(time.Now()).Next().IsZero())
}
