package space

import (
	"fmt"
	"math"
	"sort"

	"github.com/hupe1980/otree/core"
)

// ColumnStats summarizes one column of an incoming batch. It is the input
// from which transformation candidates are derived.
type ColumnStats struct {
	Min            float64
	Max            float64
	DistinctValues []string
	Count          int64
}

// CollectStats scans a batch and computes per-column statistics for the
// given columns, in column order.
func CollectStats(schema core.Schema, rows []core.Row, columns []string) (map[string]ColumnStats, error) {
	stats := make(map[string]ColumnStats, len(columns))
	for _, name := range columns {
		idx := schema.IndexOf(name)
		if idx < 0 {
			return nil, fmt.Errorf("column %q not in schema", name)
		}
		st := ColumnStats{Min: math.Inf(1), Max: math.Inf(-1)}
		distinct := map[string]struct{}{}
		for _, row := range rows {
			v := row[idx]
			if v == nil {
				continue
			}
			st.Count++
			if schema[idx].Type == core.FieldTypeString {
				s, ok := v.(string)
				if !ok {
					s = fmt.Sprintf("%v", v)
				}
				distinct[s] = struct{}{}
				continue
			}
			x := toFloat(v)
			if x < st.Min {
				st.Min = x
			}
			if x > st.Max {
				st.Max = x
			}
		}
		if len(distinct) > 0 {
			st.DistinctValues = make([]string, 0, len(distinct))
			for s := range distinct {
				st.DistinctValues = append(st.DistinctValues, s)
			}
			sort.Strings(st.DistinctValues)
		}
		stats[name] = st
	}
	return stats, nil
}

// Transformer declares how one indexed column is normalized. It derives
// transformation candidates from batch statistics and decides whether an
// existing transformation still covers new data.
type Transformer struct {
	Column string         `json:"column"`
	Type   core.FieldType `json:"type"`

	// ExpansionTolerance widens derived linear bounds by this fraction of
	// the observed span, so mild drift merges into the existing revision
	// instead of minting a new one. Zero means no slack.
	ExpansionTolerance float64 `json:"expansionTolerance,omitempty"`
}

// MakeTransformation derives a transformation candidate from observed
// statistics. String columns yield histograms; numeric columns yield
// linear transformations with tolerance slack applied.
func (t Transformer) MakeTransformation(st ColumnStats) (Transformation, error) {
	if t.Type == core.FieldTypeString {
		return NewHistogram(st.DistinctValues)
	}
	if st.Count == 0 || math.IsInf(st.Min, 1) {
		// Batch had only nulls: the narrowest valid domain.
		return Linear{Min: 0, Max: 1}, nil
	}
	min, max := st.Min, st.Max
	if span := max - min; span > 0 && t.ExpansionTolerance > 0 {
		slack := span * t.ExpansionTolerance
		min -= slack
		max += slack
	}
	if max <= min {
		max = min + 1
	}
	return Linear{Min: min, Max: max}, nil
}
