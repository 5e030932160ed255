package svm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(data []float64, start int, base float64) {
	for k := start; k < len(data); k++ {
		data[k] = base + float64(k)
	}
}

func TestCacheGet(t *testing.T) {
	c := NewCache(3, 1<<20)

	data, start := c.Get(0, 3)
	require.Len(t, data, 3)
	assert.Equal(t, 0, start)
	fill(data, start, 10)

	data, start = c.Get(0, 3)
	assert.Equal(t, 3, start)
	assert.Equal(t, []float64{10, 11, 12}, data)

	data, start = c.Get(0, 2)
	assert.Equal(t, 2, start)
	assert.Equal(t, []float64{10, 11}, data)

	data, start = c.Get(0, 3+1)
	assert.Equal(t, 3, start)
	assert.Equal(t, []float64{10, 11, 12, 0}, data)
}

func TestCacheSwap(t *testing.T) {
	c := NewCache(3, 1<<20)
	data, start := c.Get(0, 3)
	fill(data, start, 0)
	data, start = c.Get(1, 2)
	fill(data, start, 100)

	// row 1 covers position 1 but not 2: it is cut back to position 1
	c.Swap(1, 2)
	data, start = c.Get(1, 2)
	assert.Equal(t, 1, start)
	assert.Equal(t, 100.0, data[0])

	data, _ = c.Get(0, 3)
	assert.Equal(t, []float64{0, 2, 1}, data)

	// row 1 does not cover position 2 and is dropped entirely
	c.Swap(2, 0)
	data, _ = c.Get(0, 3)
	assert.Equal(t, []float64{1, 2, 0}, data)
	_, start = c.Get(1, 1)
	assert.Equal(t, 0, start)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	// a tiny budget is raised to two full rows
	c := NewCache(4, 0)
	for row := 0; row < 2; row++ {
		data, start := c.Get(row, 4)
		assert.Equal(t, 0, start)
		fill(data, start, float64(row))
	}

	_, start := c.Get(2, 4)
	assert.Equal(t, 0, start)

	_, start = c.Get(1, 4)
	assert.Equal(t, 4, start, "row 1 was used after row 0")
	_, start = c.Get(0, 4)
	assert.Equal(t, 0, start, "row 0 was the least recently used")
}

func TestCacheRowLargerThanBudget(t *testing.T) {
	c := NewCache(2, 0)
	data, start := c.Get(0, 10)
	assert.Len(t, data, 10)
	assert.Equal(t, 0, start)

	data, start = c.Get(1, 1)
	assert.Len(t, data, 1)
	assert.Equal(t, 0, start)
	_, start = c.Get(0, 10)
	assert.Equal(t, 0, start, "oversized row is evicted first")
}

func TestClassQUsesCache(t *testing.T) {
	x := clusters(3, 10, 1, cluster{1, 0, 0}, cluster{-1, 4, 4})
	prob := newTestProblem(t, x)
	l := prob.Len()
	param := DefaultParameter()
	param.Gamma = 0.5

	q := newClassQ(prob, param, labelSigns(prob.Y))
	order := make([]int, l)
	for i := range order {
		order[i] = i
	}

	first := append([]float64(nil), q.column(3, order, l)...)
	second := q.column(3, order, l)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(2*l), q.km.evaluations(), "diagonal plus one row")

	for k := range first {
		want := prob.Y[3] * prob.Y[k] * KFunction(x[3], x[k], prob.Selected, param)
		assert.InDelta(t, want, first[k], 1e-12)
	}
}

func TestSVRQDoublesExamples(t *testing.T) {
	x := clusters(4, 3, 1, cluster{0.5, 0, 0})
	prob := newTestProblem(t, x)
	l := prob.Len()
	param := DefaultParameter()
	param.Gamma = 0.5

	q := newSVRQ(prob, param)
	order := make([]int, 2*l)
	for i := range order {
		order[i] = i
	}
	col := q.column(l+1, order, 2*l)
	for k := 0; k < l; k++ {
		kv := KFunction(x[1], x[k], prob.Selected, param)
		assert.InDelta(t, -kv, col[k], 1e-12)
		assert.InDelta(t, kv, col[k+l], 1e-12)
	}
	assert.Len(t, q.diagonal(), 2*l)
}
