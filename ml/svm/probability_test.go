package svm

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"text2phenotype.com/svm/ml"
)

func TestSigmoidTrain(t *testing.T) {
	decValues := []float64{-3, -2, -1.5, -1, -0.2, 0.3, 1, 1.5, 2, 3}
	labels := []float64{-1, -1, -1, -1, 1, -1, 1, 1, 1, 1}

	a, b := sigmoidTrain(decValues, labels, zerolog.Nop())
	assert.Less(t, a, 0.0, "larger decision values must mean higher probability")
	assert.Greater(t, sigmoidPredict(3, a, b), 0.8)
	assert.Less(t, sigmoidPredict(-3, a, b), 0.2)
	assert.InDelta(t, 1-sigmoidPredict(0, -a, -b), sigmoidPredict(0, a, b), 1e-12)
}

func TestSigmoidPredictIsStable(t *testing.T) {
	assert.InDelta(t, 0.0, sigmoidPredict(1000, 1, 0), 1e-12)
	assert.InDelta(t, 1.0, sigmoidPredict(-1000, 1, 0), 1e-12)
	assert.False(t, math.IsNaN(sigmoidPredict(1e308, 10, 0)))
}

func pairwiseMatrix(k int, value func(i, j int) float64) [][]float64 {
	r := make([][]float64, k)
	for i := range r {
		r[i] = make([]float64, k)
	}
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			r[i][j] = value(i, j)
			r[j][i] = 1 - r[i][j]
		}
	}
	return r
}

func TestMulticlassProbability(t *testing.T) {
	// class 0 beats everyone, class 2 loses to everyone
	r := pairwiseMatrix(3, func(i, j int) float64 { return 0.9 })
	p, converged := multiclassProbability(r)
	assert.True(t, converged)
	require.Len(t, p, 3)
	assert.InDelta(t, 1, floats.Sum(p), 1e-9)
	assert.Greater(t, p[0], p[1])
	assert.Greater(t, p[1], p[2])

	even, converged := multiclassProbability(pairwiseMatrix(4, func(i, j int) float64 { return 0.5 }))
	assert.True(t, converged)
	for _, v := range even {
		assert.InDelta(t, 0.25, v, 1e-6)
	}

	binary, _ := multiclassProbability(pairwiseMatrix(2, func(i, j int) float64 { return 0.7 }))
	assert.InDelta(t, 0.7, binary[0], 1e-2)
}

func TestCoupleProbabilitiesReportsIterationLimit(t *testing.T) {
	r := pairwiseMatrix(3, func(i, j int) float64 { return 0.9 })

	p, converged := coupleProbabilities(r, 1)
	assert.False(t, converged)
	require.Len(t, p, 3)
	assert.InDelta(t, 1, floats.Sum(p), 1e-9)

	_, converged = coupleProbabilities(r, 100)
	assert.True(t, converged)

	wide := pairwiseMatrix(6, func(i, j int) float64 { return 0.8 })
	_, converged = voteTopFourProbability(wide, []int{5, 4, 3, 2, 1, 0})
	assert.True(t, converged)
}

func TestMulticlassProbabilityDegenerateIsUniform(t *testing.T) {
	r := make([][]float64, 3)
	for i := range r {
		r[i] = make([]float64, 3)
	}
	p, _ := multiclassProbability(r)
	assert.Equal(t, []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}, p)
	p, _ = multiclassProbability([][]float64{{0}})
	assert.Equal(t, []float64{1}, p)
}

func TestVoteTopFourProbability(t *testing.T) {
	r := pairwiseMatrix(6, func(i, j int) float64 { return 0.8 })
	votes := []int{5, 4, 3, 2, 1, 0}

	p, _ := voteTopFourProbability(r, votes)
	require.Len(t, p, 6)
	assert.InDelta(t, 1, floats.Sum(p), 1e-9)
	assert.Equal(t, 0.0, p[4])
	assert.Equal(t, 0.0, p[5])
	assert.Greater(t, p[0], p[3])

	small := pairwiseMatrix(3, func(i, j int) float64 { return 0.8 })
	want, _ := multiclassProbability(small)
	got, _ := voteTopFourProbability(small, []int{2, 1, 0})
	assert.Equal(t, want, got)
}

func TestPlattFoldsAreStratified(t *testing.T) {
	var x []ml.FeatureVector
	for i := 0; i < 10; i++ {
		x = append(x, ml.NewDenseVector(1, float64(i)), ml.NewDenseVector(-1, float64(-i)))
	}
	prob := newTestProblem(t, x)

	for seed := int64(0); seed < 5; seed++ {
		perm, foldStart := plattFolds(prob, DefaultParameter(), seed)
		require.Len(t, foldStart, probabilityFolds+1)
		for fold := 0; fold < probabilityFolds; fold++ {
			perClass := map[float64]int{}
			for _, e := range perm[foldStart[fold]:foldStart[fold+1]] {
				perClass[prob.Y[e]]++
			}
			assert.Equal(t, map[float64]int{1: 2, -1: 2}, perClass, "seed %d fold %d", seed, fold)
		}
	}
}

func TestPredictProbability(t *testing.T) {
	prob := newTestProblem(t, clusters(21, 20, 1, cluster{1, 0, 0}, cluster{2, 6, 0}, cluster{3, 0, 6}))
	param := DefaultParameter()
	param.Gamma = 0.5
	param.Probability = true

	model, err := Train(context.Background(), prob, param, Options{Seed: 5})
	require.NoError(t, err)
	require.True(t, model.HasProbability())
	require.Len(t, model.ProbA, 3)
	require.Len(t, model.ProbB, 3)

	for _, coupling := range []Coupling{CouplingPairwise, CouplingVoteTopFour} {
		for _, x := range prob.X {
			prediction, err := model.PredictProbability(x, PredictOptions{Coupling: coupling, SelectByProbability: true})
			require.NoError(t, err)
			require.Len(t, prediction.Probabilities, 3)
			assert.InDelta(t, 1, floats.Sum(prediction.Probabilities), 1e-6)
			for _, p := range prediction.Probabilities {
				assert.True(t, p >= 0 && p <= 1)
			}
			total := 0
			for _, v := range prediction.Votes {
				total += v
			}
			assert.Equal(t, 3, total)
			assert.Len(t, prediction.DecisionValues, 3)
		}
	}
}

func TestPredictProbabilityFixedSharpness(t *testing.T) {
	prob := newTestProblem(t, clusters(22, 10, 0.5, cluster{1, 0, 0}, cluster{-1, 4, 4}))
	param := linearParameter()
	param.Probability = true
	param.ProbSharpness = 2

	model, err := Train(context.Background(), prob, param, Options{})
	require.NoError(t, err)
	assert.Empty(t, model.ProbA, "fixed sharpness skips Platt fitting")

	x := prob.X[0]
	prediction, err := model.PredictProbability(x, PredictOptions{})
	require.NoError(t, err)
	f := prediction.DecisionValues[0]
	assert.InDelta(t, 1/(1+math.Exp(-2*f)), prediction.Probabilities[0], 1e-2)
	assert.Equal(t, model.Predict(x), prediction.Label)
}

func TestPredictProbabilityWithoutCalibration(t *testing.T) {
	prob := newTestProblem(t, clusters(23, 10, 0.5, cluster{1, 0, 0}, cluster{-1, 4, 4}))
	model, err := Train(context.Background(), prob, linearParameter(), Options{})
	require.NoError(t, err)

	_, err = model.PredictProbability(prob.X[0], PredictOptions{})
	assert.True(t, errors.Is(err, ErrNoProbabilityModel))
}

func TestVoteTieBreaksToLowestIndex(t *testing.T) {
	assert.Equal(t, 0, argmaxInt([]int{1, 1, 1}))
	assert.Equal(t, 1, argmaxInt([]int{0, 2, 2}))
	assert.Equal(t, 2, argmaxFloat([]float64{0.1, 0.2, 0.7}))
}

func TestParseCoupling(t *testing.T) {
	for _, c := range []Coupling{CouplingPairwise, CouplingVoteTopFour} {
		parsed, err := ParseCoupling(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
	_, err := ParseCoupling("majority")
	assert.True(t, errors.Is(err, ErrInvalidParameter))
}
