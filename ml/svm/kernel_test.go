package svm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"text2phenotype.com/svm/ml"
)

func TestKFunction(t *testing.T) {
	x := ml.NewDenseVector(1, 1, 2)
	y := ml.NewDenseVector(-1, 3, 4)
	all := ml.AllFeatures(2)

	tests := []struct {
		name  string
		param Parameter
		want  float64
	}{
		{"linear", Parameter{KernelType: KernelTypeLinear}, 11},
		{"polynomial", Parameter{KernelType: KernelTypePoly, Degree: 2, Gamma: 0.5, Coef0: 1}, 42.25},
		{"rbf", Parameter{KernelType: KernelTypeRbf, Gamma: 0.5}, math.Exp(-4)},
		{"sigmoid", Parameter{KernelType: KernelTypeSigmoid, Gamma: 0.1}, math.Tanh(1.1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, KFunction(x, y, all, tt.param), 1e-12)
		})
	}
}

func TestKFunctionSelectedFeatures(t *testing.T) {
	x := ml.NewDenseVector(1, 1, 2, 5)
	y := ml.NewDenseVector(1, 3, 4, 7)
	assert.Equal(t, 38.0, KFunction(x, y, ml.NewFeatureSubset(0, 2), Parameter{KernelType: KernelTypeLinear}))
}

func TestKFunctionPrecomputed(t *testing.T) {
	// feature 0 is the serial number, feature k the kernel value against example k
	x := ml.NewDenseVector(1, 1, 4, 0.5)
	y := ml.NewDenseVector(1, 2, 0.5, 9)
	assert.Equal(t, 0.5, KFunction(x, y, nil, Parameter{KernelType: KernelTypePrecomputed}))
	assert.Equal(t, 0.5, KFunction(y, x, nil, Parameter{KernelType: KernelTypePrecomputed}))
}

func TestPowi(t *testing.T) {
	assert.Equal(t, 1.0, powi(3, 0))
	assert.Equal(t, 3.0, powi(3, 1))
	assert.Equal(t, 243.0, powi(3, 5))
	assert.Equal(t, 0.25, powi(0.5, 2))
}

func TestKernelMatrixMatchesKFunction(t *testing.T) {
	x := clusters(1, 5, 1, cluster{1, 0, 0}, cluster{-1, 3, 3})
	prob, err := NewProblem(x, nil)
	assert.NoError(t, err)

	param := Parameter{KernelType: KernelTypeRbf, Gamma: 0.3}
	km := newKernelMatrix(prob, NewKernel(param))
	for i := range x {
		for j := range x {
			assert.InDelta(t, KFunction(x[i], x[j], prob.Selected, param), km.eval(i, j), 1e-12)
		}
	}
	assert.Equal(t, int64(len(x)*len(x)), km.evaluations())
}
