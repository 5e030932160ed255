package svm

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"text2phenotype.com/svm/ml"
)

type cluster struct {
	label  float64
	cx, cy float64
}

// clusters draws n points around every center with the given deviation.
func clusters(seed int64, n int, std float64, centers ...cluster) []ml.FeatureVector {
	rng := rand.New(rand.NewSource(seed))
	var x []ml.FeatureVector
	for i := 0; i < n; i++ {
		for _, c := range centers {
			x = append(x, ml.NewDenseVector(c.label, c.cx+rng.NormFloat64()*std, c.cy+rng.NormFloat64()*std))
		}
	}
	return x
}

func newTestProblem(t *testing.T, x []ml.FeatureVector) *Problem {
	prob, err := NewProblem(x, nil)
	require.NoError(t, err)
	return prob
}

func accuracy(m *Model, prob *Problem) float64 {
	hits := 0
	for i, x := range prob.X {
		if m.Predict(x) == prob.Y[i] {
			hits++
		}
	}
	return float64(hits) / float64(prob.Len())
}

func linearParameter() Parameter {
	param := DefaultParameter()
	param.KernelType = KernelTypeLinear
	return param
}
