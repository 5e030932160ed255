package svm

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"text2phenotype.com/svm/ml"
)

func TestCrossValidateIsDeterministic(t *testing.T) {
	prob := newTestProblem(t, clusters(41, 20, 1, cluster{1, 0, 0}, cluster{2, 4, 0}, cluster{3, 0, 4}))
	param := DefaultParameter()
	param.Gamma = 0.5

	first, err := CrossValidate(context.Background(), prob, param, 5, Options{Seed: 42})
	require.NoError(t, err)
	second, err := CrossValidate(context.Background(), prob, param, 5, Options{Seed: 42, Workers: 3})
	require.NoError(t, err)

	assert.Equal(t, first.FoldOf, second.FoldOf)
	assert.Equal(t, first.FoldScores, second.FoldScores)
	assert.Equal(t, first.Target, second.Target)
	assert.Equal(t, first.Accuracy, second.Accuracy)
	assert.Greater(t, first.Accuracy, 0.8)
	assert.InDelta(t, first.Accuracy, first.MeanFoldScore, 1e-9, "folds have equal size")
}

func TestCrossValidateStratifiesFolds(t *testing.T) {
	prob := newTestProblem(t, clusters(42, 20, 1, cluster{1, 0, 0}, cluster{2, 4, 0}, cluster{3, 0, 4}))
	rng := rand.New(rand.NewSource(7))
	perm, foldStart := foldPermutation(prob, DefaultParameter(), 5, rng)

	require.Len(t, foldStart, 6)
	assert.Equal(t, prob.Len(), foldStart[5])
	seen := make(map[int]bool)
	for fold := 0; fold < 5; fold++ {
		perClass := map[float64]int{}
		for _, e := range perm[foldStart[fold]:foldStart[fold+1]] {
			assert.False(t, seen[e], "example %d is in two folds", e)
			seen[e] = true
			perClass[prob.Y[e]]++
		}
		assert.Equal(t, map[float64]int{1: 4, 2: 4, 3: 4}, perClass)
	}
	assert.Len(t, seen, prob.Len())
}

func TestCrossValidateProbabilityWithSingleClassFold(t *testing.T) {
	x := append(clusters(45, 9, 0.5, cluster{1, 0, 0}), clusters(46, 1, 0.5, cluster{-1, 3, 3})...)
	prob := newTestProblem(t, x)
	param := linearParameter()
	param.Probability = true

	cv, err := CrossValidate(context.Background(), prob, param, 5, Options{Seed: 5})
	require.NoError(t, err)
	// the only -1 example is predicted by a model trained on class 1 alone
	assert.Equal(t, 1.0, cv.Target[9])
}

func TestCrossValidateRegression(t *testing.T) {
	var x []ml.FeatureVector
	for i := 0; i < 40; i++ {
		v := float64(i) / 40
		x = append(x, ml.NewDenseVector(3*v-1, v))
	}
	prob := newTestProblem(t, x)
	param := linearParameter()
	param.SvmType = EpsilonSvr
	param.C = 10
	param.P = 0.01

	cv, err := CrossValidate(context.Background(), prob, param, 4, Options{Seed: 1})
	require.NoError(t, err)
	assert.Less(t, cv.MeanSquaredError, 0.01)
	assert.Greater(t, cv.SquaredCorrelation, 0.99)
	assert.Len(t, cv.FoldScores, 4)
}

func TestCrossValidateMoreFoldsThanExamples(t *testing.T) {
	prob := newTestProblem(t, clusters(43, 3, 0.5, cluster{1, 0, 0}, cluster{-1, 5, 5}))
	cv, err := CrossValidate(context.Background(), prob, linearParameter(), 50, Options{})
	require.NoError(t, err)
	assert.Equal(t, prob.Len(), cv.Folds)
	assert.Equal(t, 1.0, cv.Accuracy)
}

func TestCrossValidateRejectsTooFewFolds(t *testing.T) {
	prob := newTestProblem(t, clusters(44, 3, 0.5, cluster{1, 0, 0}, cluster{-1, 5, 5}))
	_, err := CrossValidate(context.Background(), prob, linearParameter(), 1, Options{})
	assert.True(t, errors.Is(err, ErrInvalidParameter))
}
