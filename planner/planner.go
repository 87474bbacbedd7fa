// Package planner splits an inclusive integer range into balanced
// sub-ranges for the task executor's worker pool (spec §4.C).
package planner

// Range is one inclusive sub-range of work, [From, To].
type Range struct {
	From, To int64
}

// Len returns the number of integer positions covered by r.
func (r Range) Len() int64 { return r.To - r.From + 1 }

// Plan splits [from, to] (inclusive) into chunks honoring maxChunks and
// minSize. Invalid arguments (from > to, maxChunks < 1, minSize < 1)
// yield an empty plan rather than an error — callers treat an empty
// plan as a completed no-op task (§7).
func Plan(from, to int64, maxChunks, minSize int) []Range {
	if from > to || maxChunks < 1 || minSize < 1 {
		return nil
	}

	total := to - from + 1

	if maxChunks == 1 {
		return []Range{{From: from, To: to}}
	}

	minSize64 := int64(minSize)
	neededAtMinSize := (total + minSize64 - 1) / minSize64 // ceil(total/minSize)

	if neededAtMinSize <= int64(maxChunks) {
		return planFixedSize(from, total, minSize64)
	}
	return planFixedCount(from, total, maxChunks)
}

// planFixedSize produces floor(total/minSize) chunks of exactly minSize,
// plus one trailing chunk of total%minSize if nonzero.
func planFixedSize(from, total, minSize int64) []Range {
	count := total / minSize
	remainder := total % minSize

	out := make([]Range, 0, count+1)
	cur := from
	for i := int64(0); i < count; i++ {
		out = append(out, Range{From: cur, To: cur + minSize - 1})
		cur += minSize
	}
	if remainder != 0 {
		out = append(out, Range{From: cur, To: cur + remainder - 1})
	}
	return out
}

// planFixedCount produces exactly maxChunks chunks of floor(total/maxChunks),
// distributing the total%maxChunks leftover across the first chunks.
func planFixedCount(from, total int64, maxChunks int) []Range {
	base := total / int64(maxChunks)
	leftover := total % int64(maxChunks)

	out := make([]Range, 0, maxChunks)
	cur := from
	for i := 0; i < maxChunks; i++ {
		size := base
		if int64(i) < leftover {
			size++
		}
		out = append(out, Range{From: cur, To: cur + size - 1})
		cur += size
	}
	return out
}

// PlanIndices splits a value sequence of length n into index sub-ranges
// using the same algorithm, for callers slicing a slice rather than
// enumerating an integer range (§4.C: "the same logic generalizes...").
func PlanIndices(n, maxChunks, minSize int) []Range {
	if n <= 0 {
		return nil
	}
	return Plan(0, int64(n)-1, maxChunks, minSize)
}
