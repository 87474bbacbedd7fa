package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sumLen(ranges []Range) int64 {
	var total int64
	for _, r := range ranges {
		total += r.Len()
	}
	return total
}

func assertDisjointAndOrdered(t *testing.T, ranges []Range) {
	t.Helper()
	for i := 1; i < len(ranges); i++ {
		assert.Equal(t, ranges[i-1].To+1, ranges[i].From, "chunk %d does not immediately follow chunk %d", i, i-1)
	}
}

func TestPlanFixedSizeMode(t *testing.T) {
	// total=250, minSize=100 needs 3 chunks at minSize which fits under maxChunks=100.
	ranges := Plan(0, 249, 100, 100)
	assert.Equal(t, int64(250), sumLen(ranges))
	assertDisjointAndOrdered(t, ranges)
	for _, r := range ranges[:len(ranges)-1] {
		assert.Equal(t, int64(100), r.Len())
	}
}

func TestPlanFixedCountMode(t *testing.T) {
	// total=1000 at minSize=100 would need 10 chunks, which is over
	// maxChunks=5, so fixed-count mode distributes 1000 across 5 chunks.
	ranges := Plan(0, 999, 5, 100)
	assert.Len(t, ranges, 5)
	assert.Equal(t, int64(1000), sumLen(ranges))
	assertDisjointAndOrdered(t, ranges)
}

func TestPlanSingleChunk(t *testing.T) {
	ranges := Plan(5, 5, 100, 100)
	assert.Equal(t, []Range{{From: 5, To: 5}}, ranges)
}

func TestPlanInvalidArgsYieldEmptyPlan(t *testing.T) {
	assert.Empty(t, Plan(10, 5, 100, 100))
	assert.Empty(t, Plan(0, 10, 0, 100))
	assert.Empty(t, Plan(0, 10, 100, 0))
}

func TestPlanFixedCountDistributesLeftoverAcrossFirstChunks(t *testing.T) {
	// total=10 at minSize=1 would need 10 chunks, over maxChunks=3, so
	// fixed-count mode kicks in: sizes 4,3,3 (leftover 1 on the first chunk).
	ranges := Plan(0, 9, 3, 1)
	assert.Equal(t, []Range{{From: 0, To: 3}, {From: 4, To: 6}, {From: 7, To: 9}}, ranges)
	assert.Equal(t, int64(10), sumLen(ranges))
	assertDisjointAndOrdered(t, ranges)
}

func TestPlanIndices(t *testing.T) {
	ranges := PlanIndices(10, 100, 100)
	assert.Equal(t, []Range{{From: 0, To: 9}}, ranges)

	assert.Empty(t, PlanIndices(0, 100, 100))
	assert.Empty(t, PlanIndices(-1, 100, 100))
}
