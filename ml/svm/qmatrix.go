package svm

// qMatrix serves columns of Q[i][j] = y_i*y_j*K(i,j) to the solver. Variables
// are addressed by stable id; column values come back in position order, that
// is Q[v][order[0]], Q[v][order[1]], ... for the first n positions.
type qMatrix interface {
	column(v int, order []int, n int) []float64
	diagonal() []float64
	// swap notifies that positions a and b exchanged their variables.
	swap(a, b int)
}

func cacheBytes(param Parameter) int64 {
	return int64(param.CacheSize * (1 << 20))
}

// classQ backs C-SVC and nu-SVC (signs from labels) and one-class (signs nil).
type classQ struct {
	km    *kernelMatrix
	sign  []float64
	cache *Cache
	qd    []float64
}

func newClassQ(prob *Problem, param Parameter, sign []float64) *classQ {
	km := newKernelMatrix(prob, NewKernel(param))
	q := &classQ{
		km:    km,
		sign:  sign,
		cache: NewCache(prob.Len(), cacheBytes(param)),
		qd:    make([]float64, prob.Len()),
	}
	for i := range q.qd {
		q.qd[i] = km.eval(i, i)
	}
	return q
}

func (q *classQ) column(v int, order []int, n int) []float64 {
	data, start := q.cache.Get(v, n)
	for k := start; k < n; k++ {
		u := order[k]
		data[k] = q.km.eval(v, u)
		if q.sign != nil {
			data[k] *= q.sign[v] * q.sign[u]
		}
	}
	return data
}

func (q *classQ) diagonal() []float64 {
	return q.qd
}

func (q *classQ) swap(a, b int) {
	q.cache.Swap(a, b)
}

// svrQ doubles every example: variable k < l is the positive copy of example k,
// variable k+l the negative one. Kernel rows are cached per real example in
// natural order, so position swaps never touch the cache.
type svrQ struct {
	km     *kernelMatrix
	l      int
	cache  *Cache
	sign   []float64
	index  []int
	qd     []float64
	buffer [2][]float64
	next   int
}

func newSVRQ(prob *Problem, param Parameter) *svrQ {
	l := prob.Len()
	km := newKernelMatrix(prob, NewKernel(param))
	q := &svrQ{
		km:    km,
		l:     l,
		cache: NewCache(l, cacheBytes(param)),
		sign:  make([]float64, 2*l),
		index: make([]int, 2*l),
		qd:    make([]float64, 2*l),
	}
	for k := 0; k < l; k++ {
		q.sign[k], q.sign[k+l] = 1, -1
		q.index[k], q.index[k+l] = k, k
		q.qd[k] = km.eval(k, k)
		q.qd[k+l] = q.qd[k]
	}
	q.buffer[0] = make([]float64, 2*l)
	q.buffer[1] = make([]float64, 2*l)
	return q
}

// column returns one of two rotating buffers, valid until the next-but-one call.
func (q *svrQ) column(v int, order []int, n int) []float64 {
	real := q.index[v]
	data, start := q.cache.Get(real, q.l)
	for k := start; k < q.l; k++ {
		data[k] = q.km.eval(real, k)
	}
	buf := q.buffer[q.next]
	q.next = 1 - q.next
	sv := q.sign[v]
	for k := 0; k < n; k++ {
		u := order[k]
		buf[k] = sv * q.sign[u] * data[q.index[u]]
	}
	return buf[:n]
}

func (q *svrQ) diagonal() []float64 {
	return q.qd
}

func (q *svrQ) swap(a, b int) {}
