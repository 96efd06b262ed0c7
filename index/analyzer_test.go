package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/otree/cube"
	"github.com/hupe1980/otree/space"
	"github.com/hupe1980/otree/weight"
)

// spreadRecords builds n records with ascending weights and points spread
// deterministically over the unit square.
func spreadRecords(n int) []Record {
	out := make([]Record, n)
	x := uint32(12345)
	for i := range out {
		x = x*1664525 + 1013904223
		px := float64(x%1000) / 1000
		x = x*1664525 + 1013904223
		py := float64(x%1000) / 1000
		out[i] = Record{
			Point:  space.Point{px, py},
			Weight: weight.MinValue + weight.Weight(i)*1000,
		}
	}
	return out
}

func root2(t *testing.T) cube.CubeID {
	t.Helper()
	r, err := cube.Root(2)
	require.NoError(t, err)
	return r
}

func TestBuildDomainMapCapacity(t *testing.T) {
	records := spreadRecords(100)
	dm := BuildDomainMap(records, 10, root2(t))

	counts := dm.Counts()
	var total int64
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, int64(100), total, "every record is retained exactly once")
	assert.Equal(t, int64(10), counts["root"], "the root fills to capacity")

	assert.True(t, dm.Overflowed().Contains(root2(t)))
}

func TestBuildDomainMapAscendingRetention(t *testing.T) {
	records := spreadRecords(100)
	dm := BuildDomainMap(records, 10, root2(t))

	// Records are fed by ascending weight, so the root retains exactly
	// the 10 lowest weights of the batch.
	d := dm.domains["root"]
	require.NotNil(t, d)
	assert.Equal(t, records[0].Weight, d.MinWeight)
	assert.Equal(t, records[9].Weight, d.MaxWeight)
	assert.Equal(t, int64(100), d.TreeCount)
}

func TestDomainMapWeights(t *testing.T) {
	records := spreadRecords(100)
	dm := BuildDomainMap(records, 10, root2(t))
	weights := dm.Weights()

	// The overflowed root's retention threshold is its highest accepted
	// weight.
	rootWeight := weights["root"]
	assert.Equal(t, records[9].Weight.Fraction(), rootWeight)
	assert.Less(t, float64(rootWeight), 1.0)

	// Underfilled cubes keep everything.
	for key, c := range dm.Counts() {
		if c < 10 && dm.domains[key].TreeCount == c {
			assert.GreaterOrEqual(t, float64(weights[key]), 1.0, "cube %s", key)
		}
	}
}

func TestBuildDomainMapUnderfilled(t *testing.T) {
	records := spreadRecords(5)
	dm := BuildDomainMap(records, 10, root2(t))

	assert.Equal(t, int64(5), dm.Counts()["root"])
	assert.Empty(t, dm.Overflowed())
	assert.Equal(t, weight.NormalizedWeight(2.0), dm.Weights()["root"])
}

func TestBuildDomainMapEmptyBatch(t *testing.T) {
	dm := BuildDomainMap(nil, 10, root2(t))
	assert.Empty(t, dm.Counts())
	assert.Empty(t, dm.Overflowed())
}
