package engine

import (
	"container/heap"
	"sort"
)

type scored struct {
	index int
	score float64
}

// better orders by descending score, then ascending corpus index.
func better(a, b scored) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.index < b.index
}

// minHeap keeps the worst of the current top-k at the root.
type minHeap []scored

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(scored)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// selectTop selects the k best scores in O(n log k). Ties keep corpus order.
func selectTop(scores []float64, k int) []scored {
	if k <= 0 || len(scores) == 0 {
		return nil
	}
	if k > len(scores) {
		k = len(scores)
	}
	h := make(minHeap, 0, k)
	for i, s := range scores {
		c := scored{index: i, score: s}
		if h.Len() < k {
			heap.Push(&h, c)
			continue
		}
		if better(c, h[0]) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}
	out := []scored(h)
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}
