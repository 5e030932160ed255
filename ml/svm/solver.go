package svm

import (
	"context"
	"math"

	"github.com/rs/zerolog"
)

const tau = 1e-12

type boundStatus int8

const (
	lowerBound boundStatus = iota
	upperBound
	free
)

// SolutionInfo summarizes one solved binary problem.
type SolutionInfo struct {
	Obj         float64
	Rho         float64
	UpperBoundP float64
	UpperBoundN float64
	// R is only set by the nu solver.
	R float64
}

// variant holds the steps in which the nu solver differs from the standard one.
type variant interface {
	selectWorkingSet(s *solver) (i, j int, optimal bool)
	shrink(s *solver)
	rho(s *solver) (rho, r float64)
}

// solver state is indexed by variable id. order maps a position to its
// variable and pos is its inverse; the active set is order[:activeSize].
// Shrinking only permutes order, never the state arrays.
type solver struct {
	l          int
	activeSize int
	order      []int
	pos        []int

	y      []float64
	g      []float64
	gBar   []float64
	alpha  []float64
	p      []float64
	status []boundStatus

	q        qMatrix
	qd       []float64
	eps      float64
	cp, cn   float64
	unshrink bool

	variant variant
	log     zerolog.Logger
}

type solverInput struct {
	q         qMatrix
	p         []float64
	y         []float64
	alpha     []float64
	cp, cn    float64
	eps       float64
	shrinking bool
	nu        bool
}

// solve runs SMO on in.alpha in place.
func solve(ctx context.Context, in solverInput, log zerolog.Logger) (SolutionInfo, error) {
	l := len(in.y)
	s := &solver{
		l:          l,
		activeSize: l,
		order:      make([]int, l),
		pos:        make([]int, l),
		y:          in.y,
		g:          make([]float64, l),
		gBar:       make([]float64, l),
		alpha:      in.alpha,
		p:          in.p,
		status:     make([]boundStatus, l),
		q:          in.q,
		qd:         in.q.diagonal(),
		eps:        in.eps,
		cp:         in.cp,
		cn:         in.cn,
		variant:    standardVariant{},
		log:        log,
	}
	if in.nu {
		s.variant = nuVariant{}
	}
	for v := 0; v < l; v++ {
		s.order[v] = v
		s.pos[v] = v
		s.updateStatus(v)
	}
	s.initGradient()

	iter, err := s.optimize(ctx, in.shrinking)
	if err != nil {
		return SolutionInfo{}, err
	}

	var si SolutionInfo
	si.Rho, si.R = s.variant.rho(s)
	var obj float64
	for v := 0; v < l; v++ {
		obj += s.alpha[v] * (s.g[v] + s.p[v])
	}
	si.Obj = obj / 2
	si.UpperBoundP = s.cp
	si.UpperBoundN = s.cn
	log.Debug().Int("iterations", iter).Float64("obj", si.Obj).Float64("rho", si.Rho).Msg("optimization finished")
	return si, nil
}

func (s *solver) c(v int) float64 {
	if s.y[v] > 0 {
		return s.cp
	}
	return s.cn
}

func (s *solver) updateStatus(v int) {
	switch {
	case s.alpha[v] >= s.c(v):
		s.status[v] = upperBound
	case s.alpha[v] <= 0:
		s.status[v] = lowerBound
	default:
		s.status[v] = free
	}
}

func (s *solver) isUpper(v int) bool { return s.status[v] == upperBound }
func (s *solver) isLower(v int) bool { return s.status[v] == lowerBound }
func (s *solver) isFree(v int) bool  { return s.status[v] == free }

func (s *solver) initGradient() {
	copy(s.g, s.p)
	for v := 0; v < s.l; v++ {
		if s.isLower(v) {
			continue
		}
		qv := s.q.column(v, s.order, s.l)
		av := s.alpha[v]
		for k := 0; k < s.l; k++ {
			s.g[s.order[k]] += av * qv[k]
		}
		if s.isUpper(v) {
			cv := s.c(v)
			for k := 0; k < s.l; k++ {
				s.gBar[s.order[k]] += cv * qv[k]
			}
		}
	}
}

func (s *solver) maxIterations() int {
	if s.l > math.MaxInt32/100 {
		return math.MaxInt32
	}
	if n := 100 * s.l; n > 10000000 {
		return n
	}
	return 10000000
}

func (s *solver) optimize(ctx context.Context, shrinking bool) (int, error) {
	maxIter := s.maxIterations()
	counter := minInt(s.l, 1000) + 1
	iter := 0

	for iter < maxIter {
		if counter--; counter == 0 {
			if err := ctx.Err(); err != nil {
				return iter, err
			}
			counter = minInt(s.l, 1000)
			if shrinking {
				s.variant.shrink(s)
			}
		}

		i, j, optimal := s.variant.selectWorkingSet(s)
		if optimal {
			s.reconstructGradient()
			s.activeSize = s.l
			if i, j, optimal = s.variant.selectWorkingSet(s); optimal {
				break
			}
			counter = 1
		}
		iter++
		s.update(i, j)
	}

	if iter >= maxIter {
		if s.activeSize < s.l {
			s.reconstructGradient()
			s.activeSize = s.l
		}
		s.log.Warn().Int("iterations", iter).Msg("reached max number of iterations")
	}
	return iter, nil
}

// update performs the analytic two-variable step on variables i and j.
func (s *solver) update(i, j int) {
	qi := s.q.column(i, s.order, s.activeSize)
	qj := s.q.column(j, s.order, s.activeSize)
	qij := qi[s.pos[j]]

	ci, cj := s.c(i), s.c(j)
	oldI, oldJ := s.alpha[i], s.alpha[j]

	if s.y[i] != s.y[j] {
		quad := s.qd[i] + s.qd[j] + 2*qij
		if quad <= 0 {
			quad = tau
		}
		delta := (-s.g[i] - s.g[j]) / quad
		diff := s.alpha[i] - s.alpha[j]
		s.alpha[i] += delta
		s.alpha[j] += delta
		if diff > 0 {
			if s.alpha[j] < 0 {
				s.alpha[j] = 0
				s.alpha[i] = diff
			}
		} else if s.alpha[i] < 0 {
			s.alpha[i] = 0
			s.alpha[j] = -diff
		}
		if diff > ci-cj {
			if s.alpha[i] > ci {
				s.alpha[i] = ci
				s.alpha[j] = ci - diff
			}
		} else if s.alpha[j] > cj {
			s.alpha[j] = cj
			s.alpha[i] = cj + diff
		}
	} else {
		quad := s.qd[i] + s.qd[j] - 2*qij
		if quad <= 0 {
			quad = tau
		}
		delta := (s.g[i] - s.g[j]) / quad
		sum := s.alpha[i] + s.alpha[j]
		s.alpha[i] -= delta
		s.alpha[j] += delta
		if sum > ci {
			if s.alpha[i] > ci {
				s.alpha[i] = ci
				s.alpha[j] = sum - ci
			}
		} else if s.alpha[j] < 0 {
			s.alpha[j] = 0
			s.alpha[i] = sum
		}
		if sum > cj {
			if s.alpha[j] > cj {
				s.alpha[j] = cj
				s.alpha[i] = sum - cj
			}
		} else if s.alpha[i] < 0 {
			s.alpha[i] = 0
			s.alpha[j] = sum
		}
	}

	deltaI := s.alpha[i] - oldI
	deltaJ := s.alpha[j] - oldJ
	for k := 0; k < s.activeSize; k++ {
		s.g[s.order[k]] += qi[k]*deltaI + qj[k]*deltaJ
	}

	wasUpperI, wasUpperJ := s.isUpper(i), s.isUpper(j)
	s.updateStatus(i)
	s.updateStatus(j)
	if wasUpperI != s.isUpper(i) {
		s.shiftGBar(i, ci, wasUpperI)
	}
	if wasUpperJ != s.isUpper(j) {
		s.shiftGBar(j, cj, wasUpperJ)
	}
}

func (s *solver) shiftGBar(v int, cv float64, leftUpper bool) {
	if leftUpper {
		cv = -cv
	}
	qv := s.q.column(v, s.order, s.l)
	for k := 0; k < s.l; k++ {
		s.gBar[s.order[k]] += cv * qv[k]
	}
}

// reconstructGradient rebuilds G for the inactive variables from G_bar and the free ones.
func (s *solver) reconstructGradient() {
	if s.activeSize == s.l {
		return
	}
	for k := s.activeSize; k < s.l; k++ {
		v := s.order[k]
		s.g[v] = s.gBar[v] + s.p[v]
	}
	nrFree := 0
	for k := 0; k < s.activeSize; k++ {
		if s.isFree(s.order[k]) {
			nrFree++
		}
	}
	if 2*nrFree < s.activeSize {
		s.log.Debug().Int("free", nrFree).Int("active", s.activeSize).Msg("few free variables, shrinking may be slower")
	}

	if nrFree*s.l > 2*s.activeSize*(s.l-s.activeSize) {
		for k := s.activeSize; k < s.l; k++ {
			v := s.order[k]
			qv := s.q.column(v, s.order, s.activeSize)
			for m := 0; m < s.activeSize; m++ {
				if u := s.order[m]; s.isFree(u) {
					s.g[v] += s.alpha[u] * qv[m]
				}
			}
		}
		return
	}
	for m := 0; m < s.activeSize; m++ {
		u := s.order[m]
		if !s.isFree(u) {
			continue
		}
		qu := s.q.column(u, s.order, s.l)
		au := s.alpha[u]
		for k := s.activeSize; k < s.l; k++ {
			s.g[s.order[k]] += au * qu[k]
		}
	}
}

func (s *solver) swapPositions(a, b int) {
	if a == b {
		return
	}
	s.q.swap(a, b)
	va, vb := s.order[a], s.order[b]
	s.order[a], s.order[b] = vb, va
	s.pos[va], s.pos[vb] = b, a
}

// shrinkActive moves every active variable for which shrunk reports true behind the active set.
func (s *solver) shrinkActive(shrunk func(v int) bool) {
	for k := 0; k < s.activeSize; k++ {
		if !shrunk(s.order[k]) {
			continue
		}
		s.activeSize--
		for s.activeSize > k {
			if !shrunk(s.order[s.activeSize]) {
				s.swapPositions(k, s.activeSize)
				break
			}
			s.activeSize--
		}
	}
}

// unshrinkOnce restores the full active set the first time the gap gets close to eps.
func (s *solver) unshrinkOnce(gap float64) {
	if !s.unshrink && gap <= s.eps*10 {
		s.unshrink = true
		s.reconstructGradient()
		s.activeSize = s.l
		s.log.Debug().Float64("gap", gap).Msg("unshrinking")
	}
}

type standardVariant struct{}

// selectWorkingSet picks i maximizing -y_i*grad_i over I_up and j minimizing
// the second order decrease of the objective over I_low.
func (standardVariant) selectWorkingSet(s *solver) (int, int, bool) {
	gmax, gmax2 := math.Inf(-1), math.Inf(-1)
	gmaxIdx, gminIdx := -1, -1
	objDiffMin := math.Inf(1)

	for k := 0; k < s.activeSize; k++ {
		t := s.order[k]
		if s.y[t] > 0 {
			if !s.isUpper(t) && -s.g[t] >= gmax {
				gmax = -s.g[t]
				gmaxIdx = t
			}
		} else if !s.isLower(t) && s.g[t] >= gmax {
			gmax = s.g[t]
			gmaxIdx = t
		}
	}

	i := gmaxIdx
	var qi []float64
	if i != -1 {
		qi = s.q.column(i, s.order, s.activeSize)
	}

	for k := 0; k < s.activeSize; k++ {
		j := s.order[k]
		var gradDiff float64
		if s.y[j] > 0 {
			if s.isLower(j) {
				continue
			}
			gradDiff = gmax + s.g[j]
			if s.g[j] >= gmax2 {
				gmax2 = s.g[j]
			}
		} else {
			if s.isUpper(j) {
				continue
			}
			gradDiff = gmax - s.g[j]
			if -s.g[j] >= gmax2 {
				gmax2 = -s.g[j]
			}
		}
		if gradDiff <= 0 {
			continue
		}
		quad := s.qd[i] + s.qd[j] - 2*s.y[i]*s.y[j]*qi[k]
		if quad <= 0 {
			quad = tau
		}
		if objDiff := -(gradDiff * gradDiff) / quad; objDiff <= objDiffMin {
			gminIdx = j
			objDiffMin = objDiff
		}
	}

	if gmax+gmax2 < s.eps || gminIdx == -1 {
		return -1, -1, true
	}
	return gmaxIdx, gminIdx, false
}

func (standardVariant) shrink(s *solver) {
	gmax1, gmax2 := math.Inf(-1), math.Inf(-1)
	for k := 0; k < s.activeSize; k++ {
		v := s.order[k]
		if s.y[v] > 0 {
			if !s.isUpper(v) && -s.g[v] >= gmax1 {
				gmax1 = -s.g[v]
			}
			if !s.isLower(v) && s.g[v] >= gmax2 {
				gmax2 = s.g[v]
			}
		} else {
			if !s.isUpper(v) && -s.g[v] >= gmax2 {
				gmax2 = -s.g[v]
			}
			if !s.isLower(v) && s.g[v] >= gmax1 {
				gmax1 = s.g[v]
			}
		}
	}

	s.unshrinkOnce(gmax1 + gmax2)

	s.shrinkActive(func(v int) bool {
		switch {
		case s.isUpper(v):
			if s.y[v] > 0 {
				return -s.g[v] > gmax1
			}
			return -s.g[v] > gmax2
		case s.isLower(v):
			if s.y[v] > 0 {
				return s.g[v] > gmax2
			}
			return s.g[v] > gmax1
		}
		return false
	})
}

func (standardVariant) rho(s *solver) (float64, float64) {
	nrFree := 0
	ub, lb := math.Inf(1), math.Inf(-1)
	sumFree := 0.0
	for k := 0; k < s.activeSize; k++ {
		v := s.order[k]
		yG := s.y[v] * s.g[v]
		switch {
		case s.isLower(v):
			if s.y[v] > 0 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		case s.isUpper(v):
			if s.y[v] < 0 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		default:
			nrFree++
			sumFree += yG
		}
	}
	if nrFree > 0 {
		return sumFree / float64(nrFree), 0
	}
	return (ub + lb) / 2, 0
}

// nuVariant keeps an extra equality constraint per label sign, so both
// working-set variables always share a label.
type nuVariant struct{}

func (nuVariant) selectWorkingSet(s *solver) (int, int, bool) {
	gmaxp, gmaxp2 := math.Inf(-1), math.Inf(-1)
	gmaxn, gmaxn2 := math.Inf(-1), math.Inf(-1)
	gmaxpIdx, gmaxnIdx, gminIdx := -1, -1, -1
	objDiffMin := math.Inf(1)

	for k := 0; k < s.activeSize; k++ {
		t := s.order[k]
		if s.y[t] > 0 {
			if !s.isUpper(t) && -s.g[t] >= gmaxp {
				gmaxp = -s.g[t]
				gmaxpIdx = t
			}
		} else if !s.isLower(t) && s.g[t] >= gmaxn {
			gmaxn = s.g[t]
			gmaxnIdx = t
		}
	}

	ip, in := gmaxpIdx, gmaxnIdx
	var qip, qin []float64
	if ip != -1 {
		qip = s.q.column(ip, s.order, s.activeSize)
	}
	if in != -1 {
		qin = s.q.column(in, s.order, s.activeSize)
	}

	for k := 0; k < s.activeSize; k++ {
		j := s.order[k]
		var gradDiff, quad float64
		if s.y[j] > 0 {
			if s.isLower(j) {
				continue
			}
			gradDiff = gmaxp + s.g[j]
			if s.g[j] >= gmaxp2 {
				gmaxp2 = s.g[j]
			}
			if gradDiff <= 0 {
				continue
			}
			quad = s.qd[ip] + s.qd[j] - 2*qip[k]
		} else {
			if s.isUpper(j) {
				continue
			}
			gradDiff = gmaxn - s.g[j]
			if -s.g[j] >= gmaxn2 {
				gmaxn2 = -s.g[j]
			}
			if gradDiff <= 0 {
				continue
			}
			quad = s.qd[in] + s.qd[j] - 2*qin[k]
		}
		if quad <= 0 {
			quad = tau
		}
		if objDiff := -(gradDiff * gradDiff) / quad; objDiff <= objDiffMin {
			gminIdx = j
			objDiffMin = objDiff
		}
	}

	if math.Max(gmaxp+gmaxp2, gmaxn+gmaxn2) < s.eps || gminIdx == -1 {
		return -1, -1, true
	}
	if s.y[gminIdx] > 0 {
		return gmaxpIdx, gminIdx, false
	}
	return gmaxnIdx, gminIdx, false
}

func (nuVariant) shrink(s *solver) {
	// gmax1/gmax2 cover y=+1 over I_up/I_low, gmax3/gmax4 y=-1 over I_low/I_up.
	gmax1, gmax2 := math.Inf(-1), math.Inf(-1)
	gmax3, gmax4 := math.Inf(-1), math.Inf(-1)
	for k := 0; k < s.activeSize; k++ {
		v := s.order[k]
		if !s.isUpper(v) {
			if s.y[v] > 0 {
				gmax1 = math.Max(gmax1, -s.g[v])
			} else {
				gmax4 = math.Max(gmax4, -s.g[v])
			}
		}
		if !s.isLower(v) {
			if s.y[v] > 0 {
				gmax2 = math.Max(gmax2, s.g[v])
			} else {
				gmax3 = math.Max(gmax3, s.g[v])
			}
		}
	}

	s.unshrinkOnce(math.Max(gmax1+gmax2, gmax3+gmax4))

	s.shrinkActive(func(v int) bool {
		switch {
		case s.isUpper(v):
			if s.y[v] > 0 {
				return -s.g[v] > gmax1
			}
			return -s.g[v] > gmax4
		case s.isLower(v):
			if s.y[v] > 0 {
				return s.g[v] > gmax2
			}
			return s.g[v] > gmax3
		}
		return false
	})
}

// rho returns (r1-r2)/2 as the bias and (r1+r2)/2 as r.
func (nuVariant) rho(s *solver) (float64, float64) {
	var nrFree1, nrFree2 int
	ub1, ub2 := math.Inf(1), math.Inf(1)
	lb1, lb2 := math.Inf(-1), math.Inf(-1)
	var sumFree1, sumFree2 float64

	for k := 0; k < s.activeSize; k++ {
		v := s.order[k]
		if s.y[v] > 0 {
			switch {
			case s.isLower(v):
				ub1 = math.Min(ub1, s.g[v])
			case s.isUpper(v):
				lb1 = math.Max(lb1, s.g[v])
			default:
				nrFree1++
				sumFree1 += s.g[v]
			}
		} else {
			switch {
			case s.isLower(v):
				ub2 = math.Min(ub2, s.g[v])
			case s.isUpper(v):
				lb2 = math.Max(lb2, s.g[v])
			default:
				nrFree2++
				sumFree2 += s.g[v]
			}
		}
	}

	r1 := (ub1 + lb1) / 2
	if nrFree1 > 0 {
		r1 = sumFree1 / float64(nrFree1)
	}
	r2 := (ub2 + lb2) / 2
	if nrFree2 > 0 {
		r2 = sumFree2 / float64(nrFree2)
	}
	return (r1 - r2) / 2, (r1 + r2) / 2
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
