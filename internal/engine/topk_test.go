package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func indices(s []scored) []int {
	out := make([]int, len(s))
	for i, x := range s {
		out[i] = x.index
	}
	return out
}

func TestSelectTop(t *testing.T) {
	scores := []float64{0.1, 0.9, 0.5, 0.9, 0.3}

	assert.Equal(t, []int{1, 3, 2}, indices(selectTop(scores, 3)))
	assert.Equal(t, []int{1, 3, 2, 4, 0}, indices(selectTop(scores, 10)))
	assert.Empty(t, selectTop(scores, 0))
	assert.Empty(t, selectTop(scores, -1))
	assert.Empty(t, selectTop(nil, 5))
}

func TestSelectTopTiesKeepCorpusOrder(t *testing.T) {
	scores := make([]float64, 50)
	got := indices(selectTop(scores, 5))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}
