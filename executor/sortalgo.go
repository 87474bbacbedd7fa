package executor

import "sort"

// sortChunk returns a sorted copy of one sub-slice assigned to a worker.
func sortChunk(nums []int32) []int32 {
	out := make([]int32, len(nums))
	copy(out, nums)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// mergeSortedChunks reduces chunk-sorted slices, supplied in chunk
// (ascending index) order, into one fully sorted slice via iterative
// k-way merge (§4.D step 7: "equivalent to a final k-way ordered merge").
func mergeSortedChunks(chunks [][]int32) []int32 {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]int32, 0, total)
	if len(chunks) == 0 {
		return out
	}

	acc := chunks[0]
	for i := 1; i < len(chunks); i++ {
		acc = mergeTwo(acc, chunks[i])
	}
	return append(out, acc...)
}

func mergeTwo(a, b []int32) []int32 {
	out := make([]int32, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
