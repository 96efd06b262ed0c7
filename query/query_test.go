package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/otree/core"
	"github.com/hupe1980/otree/index"
	"github.com/hupe1980/otree/space"
	"github.com/hupe1980/otree/weight"
)

func testRevision() index.Revision {
	return index.Revision{
		ID:              1,
		TableID:         "events",
		DesiredCubeSize: 1000,
		Transformers: []space.Transformer{
			{Column: "x", Type: core.FieldTypeFloat},
			{Column: "y", Type: core.FieldTypeFloat},
		},
		Transformations: space.Transformations{
			space.Linear{Min: 0, Max: 100},
			space.Linear{Min: 0, Max: 100},
		},
	}
}

func TestSampleFraction(t *testing.T) {
	assert.True(t, SampleFraction(1.0).Range.IsFull())
	assert.True(t, SampleFraction(2.5).Range.IsFull())

	half := SampleFraction(0.5)
	assert.Equal(t, weight.MinValue, half.Range.From)
	assert.Equal(t, weight.FromFraction(0.5), half.Range.To)
	assert.False(t, half.Range.IsFull())
}

func TestExtractNilPredicate(t *testing.T) {
	qs := Extract(testRevision(), nil)
	assert.True(t, qs.Weights.IsFull())
	assert.True(t, qs.Box.IsFull())
}

func TestExtractColumnRange(t *testing.T) {
	rev := testRevision()
	qs := Extract(rev, Range{Column: "x", From: 25.0, To: 75.0})

	assert.InDelta(t, 0.25, qs.Box[0].From, 1e-9)
	assert.InDelta(t, 0.75, qs.Box[0].To, 1e-9)
	assert.InDelta(t, 0.0, qs.Box[1].From, 1e-9, "unconstrained dimension stays full")
	assert.Greater(t, qs.Box[1].To, 1.0)
	assert.True(t, qs.Weights.IsFull())
}

func TestExtractOpenEndedRange(t *testing.T) {
	rev := testRevision()
	qs := Extract(rev, Range{Column: "y", From: 50.0})

	assert.InDelta(t, 0.0, qs.Box[0].From, 1e-9)
	assert.InDelta(t, 0.5, qs.Box[1].From, 1e-9)
	assert.Greater(t, qs.Box[1].To, 1.0)
}

func TestExtractConjunctionNarrows(t *testing.T) {
	rev := testRevision()
	qs := Extract(rev, And{
		Range{Column: "x", From: 10.0},
		Range{Column: "x", To: 60.0},
		SampleFraction(0.1),
	})

	assert.InDelta(t, 0.1, qs.Box[0].From, 1e-9)
	assert.InDelta(t, 0.6, qs.Box[0].To, 1e-9)
	assert.Equal(t, weight.FromFraction(0.1), qs.Weights.To)
}

func TestExtractUnindexedColumnIgnored(t *testing.T) {
	rev := testRevision()
	qs := Extract(rev, Range{Column: "category", From: "a", To: "b"})
	assert.True(t, qs.Box.IsFull())
}

func TestExtractOrDisablesPruning(t *testing.T) {
	rev := testRevision()

	// The Or poisons the whole conjunction, not just its own branch.
	qs := Extract(rev, And{
		Range{Column: "x", From: 10.0, To: 20.0},
		Or{
			Range{Column: "y", From: 0.0, To: 10.0},
			Range{Column: "y", From: 90.0},
		},
	})

	assert.True(t, qs.Box.IsFull())
	assert.True(t, qs.Weights.IsFull())
}

func TestFullSpace(t *testing.T) {
	qs := Full(3)
	require.Len(t, qs.Box, 3)
	assert.True(t, qs.Box.IsFull())
	assert.True(t, qs.Weights.IsFull())
}
