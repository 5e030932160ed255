package svm

import (
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"
	"text2phenotype.com/svm/ml"
)

// Kernel carries the numeric parameters of one kernel kind.
type Kernel struct {
	Type   KernelType
	Degree int
	Gamma  float64
	Coef0  float64
}

func NewKernel(param Parameter) Kernel {
	return Kernel{
		Type:   param.KernelType,
		Degree: param.Degree,
		Gamma:  param.Gamma,
		Coef0:  param.Coef0,
	}
}

// KFunction evaluates the kernel between two feature vectors over the selected features.
func KFunction(x, y ml.FeatureVector, selected ml.FeatureSubset, param Parameter) float64 {
	k := NewKernel(param)
	if k.Type == KernelTypePrecomputed {
		return k.precomputed(x, y)
	}
	xr := selected.Compact(x, nil)
	yr := selected.Compact(y, nil)
	var xSq, ySq float64
	if k.Type == KernelTypeRbf {
		xSq, ySq = floats.Dot(xr, xr), floats.Dot(yr, yr)
	}
	return k.eval(xr, yr, xSq, ySq)
}

// eval works on compacted rows. xSq and ySq are only read by the RBF kernel.
func (k Kernel) eval(x, y []float64, xSq, ySq float64) float64 {
	switch k.Type {
	case KernelTypeLinear:
		return floats.Dot(x, y)
	case KernelTypePoly:
		return powi(k.Gamma*floats.Dot(x, y)+k.Coef0, k.Degree)
	case KernelTypeRbf:
		return math.Exp(-k.Gamma * (xSq + ySq - 2*floats.Dot(x, y)))
	case KernelTypeSigmoid:
		return math.Tanh(k.Gamma*floats.Dot(x, y) + k.Coef0)
	default:
		return 0.0
	}
}

// precomputed reads K(x, y) from x, where feature 0 of y is its 1-based serial number.
func (k Kernel) precomputed(x, y ml.FeatureVector) float64 {
	return x.Feature(int(y.Feature(0)))
}

func powi(base float64, times int) float64 {
	tmp := base
	ret := 1.0

	for t := times; t > 0; t /= 2 {
		if t%2 == 1 {
			ret *= tmp
		}

		tmp *= tmp
	}

	return ret
}

// kernelMatrix evaluates kernel values between training examples by index.
type kernelMatrix struct {
	kernel Kernel
	x      []ml.FeatureVector
	rows   [][]float64
	sq     []float64
	evals  int64
}

func newKernelMatrix(prob *Problem, kernel Kernel) *kernelMatrix {
	m := &kernelMatrix{kernel: kernel, x: prob.X}
	if kernel.Type == KernelTypePrecomputed {
		return m
	}
	m.rows = make([][]float64, prob.Len())
	for i, v := range prob.X {
		m.rows[i] = prob.Selected.Compact(v, nil)
	}
	if kernel.Type == KernelTypeRbf {
		m.sq = make([]float64, prob.Len())
		for i, row := range m.rows {
			m.sq[i] = floats.Dot(row, row)
		}
	}
	return m
}

func (m *kernelMatrix) eval(i, j int) float64 {
	atomic.AddInt64(&m.evals, 1)
	if m.kernel.Type == KernelTypePrecomputed {
		return m.kernel.precomputed(m.x[i], m.x[j])
	}
	if m.sq != nil {
		return m.kernel.eval(m.rows[i], m.rows[j], m.sq[i], m.sq[j])
	}
	return m.kernel.eval(m.rows[i], m.rows[j], 0, 0)
}

func (m *kernelMatrix) evaluations() int64 {
	return atomic.LoadInt64(&m.evals)
}
