package svm

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
)

const (
	probabilityFolds = 5

	sigmoidMaxIter = 100
	sigmoidMinStep = 1e-10
	sigmoidSigma   = 1e-12 // keeps the Hessian strictly positive definite
	sigmoidEps     = 1e-5
)

// sigmoidTrain fits P(y=1|f) = 1/(1+exp(A*f+B)) with Newton's method and a
// backtracking line search.
func sigmoidTrain(decValues, labels []float64, log zerolog.Logger) (a, b float64) {
	var prior1, prior0 float64
	for _, y := range labels {
		if y > 0 {
			prior1++
		} else {
			prior0++
		}
	}

	hiTarget := (prior1 + 1) / (prior1 + 2)
	loTarget := 1 / (prior0 + 2)
	t := make([]float64, len(labels))
	for i, y := range labels {
		if y > 0 {
			t[i] = hiTarget
		} else {
			t[i] = loTarget
		}
	}

	objective := func(a, b float64) float64 {
		f := 0.0
		for i, dec := range decValues {
			fApB := dec*a + b
			if fApB >= 0 {
				f += t[i]*fApB + math.Log1p(math.Exp(-fApB))
			} else {
				f += (t[i]-1)*fApB + math.Log1p(math.Exp(fApB))
			}
		}
		return f
	}

	a, b = 0, math.Log((prior0+1)/(prior1+1))
	fval := objective(a, b)

	iter := 0
	for ; iter < sigmoidMaxIter; iter++ {
		h11, h22, h21 := sigmoidSigma, sigmoidSigma, 0.0
		g1, g2 := 0.0, 0.0
		for i, dec := range decValues {
			fApB := dec*a + b
			var p, q float64
			if fApB >= 0 {
				p = math.Exp(-fApB) / (1 + math.Exp(-fApB))
				q = 1 / (1 + math.Exp(-fApB))
			} else {
				p = 1 / (1 + math.Exp(fApB))
				q = math.Exp(fApB) / (1 + math.Exp(fApB))
			}
			d2 := p * q
			h11 += dec * dec * d2
			h22 += d2
			h21 += dec * d2
			d1 := t[i] - p
			g1 += dec * d1
			g2 += d1
		}

		if math.Abs(g1) < sigmoidEps && math.Abs(g2) < sigmoidEps {
			break
		}

		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB

		step := 1.0
		for step >= sigmoidMinStep {
			newA, newB := a+step*dA, b+step*dB
			if newf := objective(newA, newB); newf < fval+0.0001*step*gd {
				a, b, fval = newA, newB, newf
				break
			}
			step /= 2
		}
		if step < sigmoidMinStep {
			log.Warn().Int("iteration", iter).Msg("line search fails in two-class probability estimates")
			break
		}
	}
	if iter >= sigmoidMaxIter {
		log.Warn().Msg("reaching maximal iterations in two-class probability estimates")
	}
	return a, b
}

func sigmoidPredict(decValue, a, b float64) float64 {
	fApB := decValue*a + b
	if fApB >= 0 {
		return math.Exp(-fApB) / (1 + math.Exp(-fApB))
	}
	return 1 / (1 + math.Exp(fApB))
}

// multiclassProbability couples pairwise probabilities r[i][j] = P(i | i or j)
// into one distribution (Wu, Lin and Weng, method 2). Degenerate input falls
// back to the uniform distribution.
func multiclassProbability(r [][]float64) ([]float64, bool) {
	maxIter := 100
	if k := len(r); k > maxIter {
		maxIter = k
	}
	return coupleProbabilities(r, maxIter)
}

// coupleProbabilities runs at most maxIter rounds of the fixed point. The flag
// is false when the tolerance was not met or the result had to be replaced.
func coupleProbabilities(r [][]float64, maxIter int) ([]float64, bool) {
	k := len(r)
	p := make([]float64, k)
	for t := range p {
		p[t] = 1 / float64(k)
	}
	if k < 2 {
		return p, true
	}

	q := make([][]float64, k)
	for t := range q {
		q[t] = make([]float64, k)
	}
	for t := 0; t < k; t++ {
		for j := 0; j < t; j++ {
			q[t][t] += r[j][t] * r[j][t]
			q[t][j] = q[j][t]
		}
		for j := t + 1; j < k; j++ {
			q[t][t] += r[j][t] * r[j][t]
			q[t][j] = -r[j][t] * r[t][j]
		}
		if q[t][t] == 0 {
			return uniform(k), true
		}
	}

	eps := 0.005 / float64(k)
	converged := false
	qp := make([]float64, k)
	for iter := 0; iter < maxIter; iter++ {
		pQp := 0.0
		for t := 0; t < k; t++ {
			qp[t] = floats.Dot(q[t], p)
			pQp += p[t] * qp[t]
		}
		maxError := 0.0
		for t := 0; t < k; t++ {
			maxError = math.Max(maxError, math.Abs(qp[t]-pQp))
		}
		if maxError < eps {
			converged = true
			break
		}

		for t := 0; t < k; t++ {
			diff := (-qp[t] + pQp) / q[t][t]
			p[t] += diff
			pQp = (pQp + diff*(diff*q[t][t]+2*qp[t])) / (1 + diff) / (1 + diff)
			for j := 0; j < k; j++ {
				qp[j] = (qp[j] + diff*q[t][j]) / (1 + diff)
				p[j] /= 1 + diff
			}
		}
	}

	sum := floats.Sum(p)
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return uniform(k), false
	}
	for t := range p {
		p[t] = math.Max(p[t], 0) / sum
	}
	return p, converged
}

// voteTopFourProbability couples only the most voted classes, ties going to
// the lower index. All other classes get probability zero.
func voteTopFourProbability(r [][]float64, votes []int) ([]float64, bool) {
	k := len(r)
	if k <= topVotedClasses {
		return multiclassProbability(r)
	}

	ranked := make([]int, k)
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return votes[ranked[a]] > votes[ranked[b]]
	})
	top := ranked[:topVotedClasses]
	sort.Ints(top)

	sub := make([][]float64, len(top))
	for a, i := range top {
		sub[a] = make([]float64, len(top))
		for b, j := range top {
			sub[a][b] = r[i][j]
		}
	}
	subP, converged := multiclassProbability(sub)

	p := make([]float64, k)
	for a, i := range top {
		p[i] = subP[a]
	}
	return p, converged
}

func uniform(k int) []float64 {
	p := make([]float64, k)
	for t := range p {
		p[t] = 1 / float64(k)
	}
	return p
}

// binarySVCProbability fits Platt's sigmoid on 5-fold cross-validated decision
// values of a ±1 problem.
// plattFolds splits a +1/-1 pair problem into class-stratified folds.
func plattFolds(prob *Problem, param Parameter, seed int64) (perm, foldStart []int) {
	return foldPermutation(prob, param, probabilityFolds, rand.New(rand.NewSource(seed)))
}

func binarySVCProbability(ctx context.Context, prob *Problem, param Parameter, cp, cn float64, opts Options) (float64, float64, error) {
	l := prob.Len()
	perm, foldStart := plattFolds(prob, param, opts.Seed)
	decValues := make([]float64, l)

	for fold := 0; fold < probabilityFolds; fold++ {
		begin, end := foldStart[fold], foldStart[fold+1]

		rest := make([]int, 0, l-(end-begin))
		rest = append(rest, perm[:begin]...)
		rest = append(rest, perm[end:]...)
		sub := prob.subset(rest)

		pos, neg := 0, 0
		for _, y := range sub.Y {
			if y > 0 {
				pos++
			} else {
				neg++
			}
		}

		var fixed float64
		switch {
		case pos == 0 && neg == 0:
			fixed = 0
		case neg == 0:
			fixed = 1
		case pos == 0:
			fixed = -1
		default:
			subParam := param.clone()
			subParam.Probability = false
			subParam.C = 1
			subParam.WeightLabel = []int{1, -1}
			subParam.Weight = []float64{cp, cn}
			model, err := train(ctx, sub, subParam, opts.derive(fold))
			if err != nil {
				return 0, 0, err
			}
			for _, i := range perm[begin:end] {
				// keep the +1/-1 orientation whatever label the sub model saw first
				decValues[i] = model.DecisionValues(prob.X[i])[0] * float64(model.Label[0])
			}
			continue
		}
		for _, i := range perm[begin:end] {
			decValues[i] = fixed
		}
	}

	a, b := sigmoidTrain(decValues, prob.Y, opts.logger())
	return a, b, nil
}

// svrProbability estimates the scale of a Laplace distribution fitted on
// cross-validated residuals, ignoring residuals beyond five deviations.
func svrProbability(ctx context.Context, prob *Problem, param Parameter, opts Options) (float64, error) {
	l := prob.Len()
	cvParam := param.clone()
	cvParam.Probability = false
	target, _, err := crossValidationTargets(ctx, prob, cvParam, probabilityFolds, opts)
	if err != nil {
		return 0, err
	}

	residual := make([]float64, l)
	mae := 0.0
	for i := range residual {
		residual[i] = prob.Y[i] - target[i]
		mae += math.Abs(residual[i])
	}
	mae /= float64(l)
	std := math.Sqrt(2 * mae * mae)

	count := 0
	mae = 0
	for _, r := range residual {
		if math.Abs(r) > 5*std {
			count++
		} else {
			mae += math.Abs(r)
		}
	}
	mae /= float64(l - count)

	log := opts.logger()
	log.Debug().Float64("sigma", mae).Msg("regression residuals modelled as Laplace(0, sigma)")
	return mae, nil
}
