// Package query turns predicates over indexed columns into file-skipping
// decisions.
//
// A conjunction of column ranges and weight filters reduces, per
// revision, to a QuerySpace: one weight range plus one spatial box in
// normalized coordinates. Files whose cube volume misses the box or
// whose weight tags miss the range cannot contain matching rows and are
// pruned before any data is read. Disjunctions are not decomposed; an OR
// anywhere collapses the whole query to the full space, trading pruning
// for guaranteed correctness.
package query

import (
	"github.com/hupe1980/otree/index"
	"github.com/hupe1980/otree/space"
	"github.com/hupe1980/otree/weight"
)

// Predicate restricts the rows a read is interested in.
type Predicate interface {
	isPredicate()
}

// And is the conjunction of its operands.
type And []Predicate

func (And) isPredicate() {}

// Or is the disjunction of its operands. It is never decomposed: its
// presence disables pruning for the whole query.
type Or []Predicate

func (Or) isPredicate() {}

// Range restricts one column to [From, To). A nil bound is unbounded.
// Ranges over columns the revision does not index are ignored.
type Range struct {
	Column string
	From   any
	To     any
}

func (Range) isPredicate() {}

// WeightRange restricts rows by their sampling weight.
type WeightRange struct {
	Range weight.Range
}

func (WeightRange) isPredicate() {}

// SampleFraction builds the weight filter selecting an approximately
// uniform f-fraction of all rows. Fractions at or above 1 select
// everything.
func SampleFraction(f float64) WeightRange {
	if f >= 1 {
		return WeightRange{Range: weight.FullRange()}
	}
	return WeightRange{Range: weight.Range{From: weight.MinValue, To: weight.FromFraction(f)}}
}

// QuerySpace is the pruning view of a predicate under one revision: the
// files worth reading are exactly those intersecting both parts.
type QuerySpace struct {
	Weights weight.Range
	Box     space.Box
}

// Full returns the space that prunes nothing.
func Full(dimensions int) QuerySpace {
	return QuerySpace{Weights: weight.FullRange(), Box: space.AllSpace(dimensions)}
}

// Extract reduces a predicate to a QuerySpace under the given revision.
// A nil predicate, and any predicate containing an Or, yields the full
// space.
func Extract(rev index.Revision, p Predicate) QuerySpace {
	qs := Full(rev.Dimensions())
	if p == nil {
		return qs
	}
	if !narrow(&qs, rev, p) {
		return Full(rev.Dimensions())
	}
	return qs
}

// narrow folds one predicate into qs. It returns false when the
// predicate cannot be decomposed conjunctively.
func narrow(qs *QuerySpace, rev index.Revision, p Predicate) bool {
	switch pred := p.(type) {
	case And:
		for _, sub := range pred {
			if !narrow(qs, rev, sub) {
				return false
			}
		}
		return true

	case Or:
		return false

	case WeightRange:
		if pred.Range.From > qs.Weights.From {
			qs.Weights.From = pred.Range.From
		}
		if pred.Range.To < qs.Weights.To {
			qs.Weights.To = pred.Range.To
		}
		return true

	case Range:
		dim := columnDimension(rev, pred.Column)
		if dim < 0 {
			return true
		}
		t := rev.Transformations[dim]
		r := &qs.Box[dim]
		if pred.From != nil {
			if from := t.Transform(pred.From); from > r.From {
				r.From = from
			}
		}
		if pred.To != nil {
			if to := t.Transform(pred.To); to < r.To {
				r.To = to
			}
		}
		return true

	default:
		return false
	}
}

func columnDimension(rev index.Revision, column string) int {
	for i, t := range rev.Transformers {
		if t.Column == column {
			return i
		}
	}
	return -1
}
