package svm

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"
	"text2phenotype.com/svm/ml"
)

// CrossValidation is the outcome of a k-fold run. Target and FoldOf follow the
// original example order.
type CrossValidation struct {
	Folds  int       `json:"folds"`
	Target []float64 `json:"target"`
	FoldOf []int     `json:"fold_of"`
	// FoldScores holds the accuracy (classification, one-class) or the mean
	// squared error (regression) of every fold.
	FoldScores         []float64 `json:"fold_scores"`
	MeanFoldScore      float64   `json:"mean_fold_score"`
	StdDevFoldScore    float64   `json:"stddev_fold_score"`
	Accuracy           float64   `json:"accuracy,omitempty"`
	MeanSquaredError   float64   `json:"mean_squared_error,omitempty"`
	SquaredCorrelation float64   `json:"squared_correlation,omitempty"`
}

// CrossValidate trains on all folds but one and predicts the held-out one, for
// every fold. Classification folds are stratified by class.
func CrossValidate(ctx context.Context, prob *Problem, param Parameter, nrFold int, opts Options) (*CrossValidation, error) {
	if prob == nil {
		return nil, ErrEmptyProblem
	}
	if err := param.Check(prob); err != nil {
		return nil, err
	}
	if nrFold < 2 {
		return nil, fmt.Errorf("%w: number of folds %d must be at least 2", ErrInvalidParameter, nrFold)
	}
	log := opts.logger()
	if nrFold > prob.Len() {
		log.Warn().Int("folds", nrFold).Int("examples", prob.Len()).Msg("more folds than examples, using leave-one-out")
		nrFold = prob.Len()
	}
	param = resolveGamma(param.clone(), prob, log)

	target, foldOf, err := crossValidationTargets(ctx, prob, param, nrFold, opts)
	if err != nil {
		return nil, err
	}

	cv := &CrossValidation{
		Folds:      nrFold,
		Target:     target,
		FoldOf:     foldOf,
		FoldScores: make([]float64, nrFold),
	}
	regression := param.OneOfTypes(EpsilonSvr, NuSvr)
	hits := make([]float64, nrFold)
	sizes := make([]float64, nrFold)
	for i, fold := range foldOf {
		sizes[fold]++
		if regression {
			d := target[i] - prob.Y[i]
			hits[fold] += d * d
		} else if target[i] == prob.Y[i] {
			hits[fold]++
		}
	}
	for fold := range cv.FoldScores {
		if sizes[fold] > 0 {
			cv.FoldScores[fold] = hits[fold] / sizes[fold]
		}
	}
	cv.MeanFoldScore, cv.StdDevFoldScore = stat.MeanStdDev(cv.FoldScores, nil)
	if math.IsNaN(cv.StdDevFoldScore) {
		cv.StdDevFoldScore = 0
	}

	total := 0.0
	for _, h := range hits {
		total += h
	}
	if regression {
		cv.MeanSquaredError = total / float64(prob.Len())
		if r := stat.Correlation(target, prob.Y, nil); !math.IsNaN(r) {
			cv.SquaredCorrelation = r * r
		}
		log.Info().Float64("mse", cv.MeanSquaredError).Float64("squared_correlation", cv.SquaredCorrelation).Msg("cross validation finished")
	} else {
		cv.Accuracy = total / float64(prob.Len())
		log.Info().Float64("accuracy", cv.Accuracy).Int("folds", nrFold).Msg("cross validation finished")
	}
	return cv, nil
}

// foldPermutation returns the example order and the start of every fold inside it.
func foldPermutation(prob *Problem, param Parameter, nrFold int, rng *rand.Rand) (perm, foldStart []int) {
	l := prob.Len()
	foldStart = make([]int, nrFold+1)

	if !param.IsClassification() || nrFold >= l {
		perm = rng.Perm(l)
		for i := 0; i <= nrFold; i++ {
			foldStart[i] = i * l / nrFold
		}
		return perm, foldStart
	}

	_, start, count, index := ml.GroupByClass(prob.Y)
	for c := range count {
		for i := 0; i < count[c]; i++ {
			j := i + rng.Intn(count[c]-i)
			index[start[c]+i], index[start[c]+j] = index[start[c]+j], index[start[c]+i]
		}
	}

	foldCount := make([]int, nrFold)
	for i := range foldCount {
		for c := range count {
			foldCount[i] += (i+1)*count[c]/nrFold - i*count[c]/nrFold
		}
	}
	for i := 1; i <= nrFold; i++ {
		foldStart[i] = foldStart[i-1] + foldCount[i-1]
	}

	perm = make([]int, l)
	next := append([]int(nil), foldStart[:nrFold]...)
	for c := range count {
		for i := 0; i < nrFold; i++ {
			begin := start[c] + i*count[c]/nrFold
			end := start[c] + (i+1)*count[c]/nrFold
			for _, e := range index[begin:end] {
				perm[next[i]] = e
				next[i]++
			}
		}
	}
	return perm, foldStart
}

// crossValidationTargets predicts every example with a model that did not see it.
func crossValidationTargets(ctx context.Context, prob *Problem, param Parameter, nrFold int, opts Options) ([]float64, []int, error) {
	l := prob.Len()
	rng := rand.New(rand.NewSource(opts.Seed))
	perm, foldStart := foldPermutation(prob, param, nrFold, rng)

	target := make([]float64, l)
	foldOf := make([]int, l)
	for fold := 0; fold < nrFold; fold++ {
		for _, e := range perm[foldStart[fold]:foldStart[fold+1]] {
			foldOf[e] = fold
		}
	}

	usesProbability := param.Probability && param.IsClassification()
	log := opts.logger()
	err := runParallel(nrFold, opts.workers(), func(fold int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		begin, end := foldStart[fold], foldStart[fold+1]
		rest := make([]int, 0, l-(end-begin))
		rest = append(rest, perm[:begin]...)
		rest = append(rest, perm[end:]...)

		model, err := train(ctx, prob.subset(rest), param, opts.derive(fold))
		if err != nil {
			return err
		}
		for _, e := range perm[begin:end] {
			if usesProbability && model.HasProbability() {
				prediction, err := model.PredictProbability(prob.X[e], PredictOptions{SelectByProbability: true, Logger: &log})
				if err != nil {
					return err
				}
				target[e] = prediction.Label
				continue
			}
			target[e] = model.Predict(prob.X[e])
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return target, foldOf, nil
}
