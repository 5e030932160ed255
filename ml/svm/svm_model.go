package svm

import (
	"gonum.org/v1/gonum/floats"
	"text2phenotype.com/svm/ml"
)

// SupportVectors lists the model's support vectors in packed order.
type SupportVectors interface {
	Len() int
	At(i int) ml.FeatureVector
}

// BorrowedVectors is a view into training examples the caller keeps alive.
type BorrowedVectors struct {
	source []ml.FeatureVector
	index  []int
}

func (b BorrowedVectors) Len() int {
	return len(b.index)
}

func (b BorrowedVectors) At(i int) ml.FeatureVector {
	return b.source[b.index[i]]
}

// OwnedVectors are held by the model itself, as after loading from a file.
type OwnedVectors []ml.FeatureVector

func (o OwnedVectors) Len() int {
	return len(o)
}

func (o OwnedVectors) At(i int) ml.FeatureVector {
	return o[i]
}

// Model is a trained support vector machine.
//
// For classification, class i owns the NSV[i] support vectors starting at the
// sum of NSV[:i], and SvCoef[k][sv] is the coefficient of sv in the pair
// formed by its own class and the k-th of the other classes. Rho, ProbA and
// ProbB hold one value per class pair (i, j), i < j, in row-major order.
type Model struct {
	Param    Parameter        `json:"param"`
	NrClass  int              `json:"nr_class"`
	L        int              `json:"l"`
	Selected ml.FeatureSubset `json:"selected"`
	SV       SupportVectors   `json:"-"`
	SvCoef   [][]float64      `json:"sv_coef"`
	Rho      []float64        `json:"rho"`
	ProbA    []float64        `json:"prob_a,omitempty"`
	ProbB    []float64        `json:"prob_b,omitempty"`
	Label    ml.ClassList     `json:"label,omitempty"`
	NSV      []int            `json:"nsv,omitempty"`
	// SVIndices are 1-based positions of the support vectors in the training problem.
	// They are not persisted.
	SVIndices []int `json:"-"`

	kernel Kernel
	rows   [][]float64
	sq     []float64
	start  []int
}

// prepare compacts the support vectors once so prediction only touches the selected features.
func (m *Model) prepare() {
	m.kernel = NewKernel(m.Param)
	m.rows, m.sq = nil, nil
	if m.kernel.Type != KernelTypePrecomputed {
		m.rows = make([][]float64, m.L)
		for i := range m.rows {
			m.rows[i] = m.Selected.Compact(m.SV.At(i), nil)
		}
		if m.kernel.Type == KernelTypeRbf {
			m.sq = make([]float64, m.L)
			for i, row := range m.rows {
				m.sq[i] = floats.Dot(row, row)
			}
		}
	}
	if len(m.NSV) > 0 {
		m.start = make([]int, len(m.NSV))
		for i := 1; i < len(m.NSV); i++ {
			m.start[i] = m.start[i-1] + m.NSV[i-1]
		}
	}
}

func (m *Model) SvmType() SvmType {
	return m.Param.SvmType
}

func (m *Model) Labels() ml.ClassList {
	return m.Label
}

// HasProbability reports whether PredictProbability can produce class probabilities.
// A model that saw a single class has no pairs to calibrate.
func (m *Model) HasProbability() bool {
	if m.Param.IsClassification() {
		if m.NrClass < 2 {
			return false
		}
		if m.Param.ProbSharpness > 0 {
			return true
		}
		return len(m.ProbA) == m.pairs() && len(m.ProbB) == m.pairs()
	}
	return m.Param.OneOfTypes(EpsilonSvr, NuSvr) && len(m.ProbA) > 0
}

// SVRProbability returns the Laplace scale of regression residuals.
func (m *Model) SVRProbability() (float64, error) {
	if !m.Param.OneOfTypes(EpsilonSvr, NuSvr) || len(m.ProbA) == 0 {
		return 0, ErrNoProbabilityModel
	}
	return m.ProbA[0], nil
}

func (m *Model) pairs() int {
	return m.NrClass * (m.NrClass - 1) / 2
}

// kernelValues evaluates x against every support vector.
func (m *Model) kernelValues(x ml.FeatureVector) []float64 {
	values := make([]float64, m.L)
	if m.kernel.Type == KernelTypePrecomputed {
		for i := range values {
			values[i] = m.kernel.precomputed(x, m.SV.At(i))
		}
		return values
	}
	xr := m.Selected.Compact(x, nil)
	var xSq float64
	if m.sq != nil {
		xSq = floats.Dot(xr, xr)
	}
	for i, row := range m.rows {
		var svSq float64
		if m.sq != nil {
			svSq = m.sq[i]
		}
		values[i] = m.kernel.eval(xr, row, xSq, svSq)
	}
	return values
}
