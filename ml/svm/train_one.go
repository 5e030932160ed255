package svm

import (
	"context"
	"math"

	"github.com/rs/zerolog"
)

// decisionFunction is one solved binary problem: alpha per example (already
// multiplied by its sign) and the bias.
type decisionFunction struct {
	alpha []float64
	rho   float64
}

func labelSigns(y []float64) []float64 {
	signs := make([]float64, len(y))
	for i, v := range y {
		if v > 0 {
			signs[i] = 1
		} else {
			signs[i] = -1
		}
	}
	return signs
}

func solveCSvc(ctx context.Context, prob *Problem, param Parameter, cp, cn float64, log zerolog.Logger) ([]float64, SolutionInfo, error) {
	l := prob.Len()
	y := labelSigns(prob.Y)
	alpha := make([]float64, l)
	minusOnes := make([]float64, l)
	for i := range minusOnes {
		minusOnes[i] = -1
	}

	si, err := solve(ctx, solverInput{
		q: newClassQ(prob, param, y), p: minusOnes, y: y, alpha: alpha,
		cp: cp, cn: cn, eps: param.Eps, shrinking: param.Shrinking,
	}, log)
	if err != nil {
		return nil, si, err
	}

	if cp == cn {
		sum := 0.0
		for _, a := range alpha {
			sum += a
		}
		log.Debug().Float64("nu", sum/(cp*float64(l))).Msg("c-svc solved")
	}
	for i := range alpha {
		alpha[i] *= y[i]
	}
	return alpha, si, nil
}

func solveNuSvc(ctx context.Context, prob *Problem, param Parameter, log zerolog.Logger) ([]float64, SolutionInfo, error) {
	l := prob.Len()
	y := labelSigns(prob.Y)
	alpha := make([]float64, l)
	sumPos := param.Nu * float64(l) / 2
	sumNeg := sumPos
	for i := range alpha {
		if y[i] > 0 {
			alpha[i] = math.Min(1, sumPos)
			sumPos -= alpha[i]
		} else {
			alpha[i] = math.Min(1, sumNeg)
			sumNeg -= alpha[i]
		}
	}

	si, err := solve(ctx, solverInput{
		q: newClassQ(prob, param, y), p: make([]float64, l), y: y, alpha: alpha,
		cp: 1, cn: 1, eps: param.Eps, shrinking: param.Shrinking, nu: true,
	}, log)
	if err != nil {
		return nil, si, err
	}

	r := si.R
	log.Debug().Float64("c", 1/r).Msg("nu-svc solved")
	for i := range alpha {
		alpha[i] *= y[i] / r
	}
	si.Rho /= r
	si.Obj /= r * r
	si.UpperBoundP = 1 / r
	si.UpperBoundN = 1 / r
	return alpha, si, nil
}

func solveOneClass(ctx context.Context, prob *Problem, param Parameter, log zerolog.Logger) ([]float64, SolutionInfo, error) {
	l := prob.Len()
	alpha := make([]float64, l)
	ones := make([]float64, l)
	n := int(param.Nu * float64(l))
	for i := range alpha {
		ones[i] = 1
		switch {
		case i < n:
			alpha[i] = 1
		case i == n:
			alpha[i] = param.Nu*float64(l) - float64(n)
		}
	}

	si, err := solve(ctx, solverInput{
		q: newClassQ(prob, param, nil), p: make([]float64, l), y: ones, alpha: alpha,
		cp: 1, cn: 1, eps: param.Eps, shrinking: param.Shrinking,
	}, log)
	return alpha, si, err
}

func solveEpsilonSvr(ctx context.Context, prob *Problem, param Parameter, log zerolog.Logger) ([]float64, SolutionInfo, error) {
	l := prob.Len()
	alpha2 := make([]float64, 2*l)
	linear := make([]float64, 2*l)
	y := make([]float64, 2*l)
	for i := 0; i < l; i++ {
		linear[i] = param.P - prob.Y[i]
		y[i] = 1
		linear[i+l] = param.P + prob.Y[i]
		y[i+l] = -1
	}

	si, err := solve(ctx, solverInput{
		q: newSVRQ(prob, param), p: linear, y: y, alpha: alpha2,
		cp: param.C, cn: param.C, eps: param.Eps, shrinking: param.Shrinking,
	}, log)
	if err != nil {
		return nil, si, err
	}

	alpha := make([]float64, l)
	sum := 0.0
	for i := range alpha {
		alpha[i] = alpha2[i] - alpha2[i+l]
		sum += math.Abs(alpha[i])
	}
	log.Debug().Float64("nu", sum/(param.C*float64(l))).Msg("epsilon-svr solved")
	return alpha, si, nil
}

func solveNuSvr(ctx context.Context, prob *Problem, param Parameter, log zerolog.Logger) ([]float64, SolutionInfo, error) {
	l := prob.Len()
	alpha2 := make([]float64, 2*l)
	linear := make([]float64, 2*l)
	y := make([]float64, 2*l)
	sum := param.C * param.Nu * float64(l) / 2
	for i := 0; i < l; i++ {
		alpha2[i] = math.Min(sum, param.C)
		alpha2[i+l] = alpha2[i]
		sum -= alpha2[i]
		linear[i] = -prob.Y[i]
		y[i] = 1
		linear[i+l] = prob.Y[i]
		y[i+l] = -1
	}

	si, err := solve(ctx, solverInput{
		q: newSVRQ(prob, param), p: linear, y: y, alpha: alpha2,
		cp: param.C, cn: param.C, eps: param.Eps, shrinking: param.Shrinking, nu: true,
	}, log)
	if err != nil {
		return nil, si, err
	}

	log.Debug().Float64("epsilon", -si.R).Msg("nu-svr solved")
	alpha := make([]float64, l)
	for i := range alpha {
		alpha[i] = alpha2[i] - alpha2[i+l]
	}
	return alpha, si, nil
}

// singleSided reports a classification problem whose labels all fall on one side.
func singleSided(y []float64) (bool, float64) {
	pos, neg := 0, 0
	for _, v := range y {
		if v > 0 {
			pos++
		} else {
			neg++
		}
	}
	switch {
	case neg == 0:
		return true, 1
	case pos == 0:
		return true, -1
	}
	return false, 0
}

// trainOne solves one binary problem. Classification problems with a single
// label side skip the solver and decide that side for every input.
func trainOne(ctx context.Context, prob *Problem, param Parameter, cp, cn float64, log zerolog.Logger) (decisionFunction, error) {
	if param.IsClassification() {
		if ok, side := singleSided(prob.Y); ok {
			log.Debug().Float64("side", side).Int("examples", prob.Len()).Msg("single-sided problem, solver skipped")
			return decisionFunction{alpha: make([]float64, prob.Len()), rho: -side}, nil
		}
	}

	var (
		alpha []float64
		si    SolutionInfo
		err   error
	)
	switch param.SvmType {
	case CSvc:
		alpha, si, err = solveCSvc(ctx, prob, param, cp, cn, log)
	case NuSvc:
		alpha, si, err = solveNuSvc(ctx, prob, param, log)
	case OneClass:
		alpha, si, err = solveOneClass(ctx, prob, param, log)
	case EpsilonSvr:
		alpha, si, err = solveEpsilonSvr(ctx, prob, param, log)
	case NuSvr:
		alpha, si, err = solveNuSvr(ctx, prob, param, log)
	}
	if err != nil {
		return decisionFunction{}, err
	}

	nSV, nBSV := 0, 0
	for i, a := range alpha {
		if a == 0 {
			continue
		}
		nSV++
		if prob.Y[i] > 0 {
			if math.Abs(a) >= si.UpperBoundP {
				nBSV++
			}
		} else if math.Abs(a) >= si.UpperBoundN {
			nBSV++
		}
	}
	log.Debug().Float64("obj", si.Obj).Float64("rho", si.Rho).Int("nSV", nSV).Int("nBSV", nBSV).Msg("binary problem trained")

	df := decisionFunction{alpha: alpha, rho: si.Rho}
	if param.NormalizeMargin && param.OneOfTypes(CSvc, NuSvc, OneClass) {
		normalizeMargin(prob, param, &df)
	}
	return df, nil
}

// normalizeMargin rescales alpha and rho by sqrt(sum_ij a_i a_j K_ij) over the support vectors.
func normalizeMargin(prob *Problem, param Parameter, df *decisionFunction) {
	var sv []int
	for i, a := range df.alpha {
		if a != 0 {
			sv = append(sv, i)
		}
	}
	km := newKernelMatrix(prob, NewKernel(param))
	w2 := 0.0
	for _, i := range sv {
		for _, j := range sv {
			w2 += df.alpha[i] * df.alpha[j] * km.eval(i, j)
		}
	}
	if w2 <= 0 {
		return
	}
	w := math.Sqrt(w2)
	for i := range df.alpha {
		df.alpha[i] /= w
	}
	df.rho /= w
}
