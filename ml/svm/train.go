package svm

import (
	"context"

	"github.com/rs/zerolog"
	"text2phenotype.com/svm/ml"
)

// Train validates the parameters against prob and fits a model. Classification
// problems with K classes are decomposed into K(K-1)/2 one-vs-one problems.
func Train(ctx context.Context, prob *Problem, param Parameter, opts Options) (*Model, error) {
	if prob == nil {
		return nil, ErrEmptyProblem
	}
	if err := param.Check(prob); err != nil {
		return nil, err
	}
	return train(ctx, prob, param, opts)
}

// resolveGamma replaces an unset gamma by 1/number of selected features.
func resolveGamma(param Parameter, prob *Problem, log zerolog.Logger) Parameter {
	if param.usesGamma() && param.Gamma == 0 && len(prob.Selected) > 0 {
		param.Gamma = 1 / float64(len(prob.Selected))
		log.Warn().Float64("gamma", param.Gamma).Msg("gamma not set, using 1/number of features")
	}
	return param
}

func train(ctx context.Context, prob *Problem, param Parameter, opts Options) (*Model, error) {
	log := opts.logger()
	param = resolveGamma(param.clone(), prob, log)

	if !param.IsClassification() {
		return trainSingle(ctx, prob, param, opts)
	}
	return trainOneVsOne(ctx, prob, param, opts)
}

// trainSingle handles one-class and regression, which solve a single problem.
func trainSingle(ctx context.Context, prob *Problem, param Parameter, opts Options) (*Model, error) {
	model := &Model{
		Param:    param,
		NrClass:  2,
		Selected: prob.Selected,
	}

	if param.Probability && param.OneOfTypes(EpsilonSvr, NuSvr) {
		sigma, err := svrProbability(ctx, prob, param, opts)
		if err != nil {
			return nil, err
		}
		model.ProbA = []float64{sigma}
	}

	df, err := trainOne(ctx, prob, param, 0, 0, opts.logger())
	if err != nil {
		return nil, err
	}

	var index []int
	var coef []float64
	for i, a := range df.alpha {
		if a != 0 {
			index = append(index, i)
			coef = append(coef, a)
			model.SVIndices = append(model.SVIndices, i+1)
		}
	}
	model.L = len(index)
	model.SV = BorrowedVectors{source: prob.X, index: index}
	model.SvCoef = [][]float64{coef}
	model.Rho = []float64{df.rho}
	model.prepare()
	return model, nil
}

type classPair struct {
	i, j int
}

func trainOneVsOne(ctx context.Context, prob *Problem, param Parameter, opts Options) (*Model, error) {
	log := opts.logger()
	l := prob.Len()
	classes, start, count, perm := ml.GroupByClass(prob.Y)
	nrClass := len(classes)
	if nrClass == 1 {
		log.Warn().Int("label", classes[0]).Msg("training data in only one class, every prediction will be this label")
	}

	weightedC := make([]float64, nrClass)
	for k := range weightedC {
		weightedC[k] = param.C
	}
	for w, label := range param.WeightLabel {
		k := classes.IndexOf(label)
		if k < 0 {
			log.Warn().Int("label", label).Msg("class label specified in weight is not found")
			continue
		}
		weightedC[k] *= param.Weight[w]
	}

	var pairs []classPair
	for i := 0; i < nrClass; i++ {
		for j := i + 1; j < nrClass; j++ {
			pairs = append(pairs, classPair{i, j})
		}
	}

	calibrate := param.Probability && param.ProbSharpness <= 0
	decisions := make([]decisionFunction, len(pairs))
	probA := make([]float64, len(pairs))
	probB := make([]float64, len(pairs))

	err := runParallel(len(pairs), opts.workers(), func(p int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		pair := pairs[p]
		indexes := make([]int, 0, count[pair.i]+count[pair.j])
		indexes = append(indexes, perm[start[pair.i]:start[pair.i]+count[pair.i]]...)
		indexes = append(indexes, perm[start[pair.j]:start[pair.j]+count[pair.j]]...)
		sub := prob.subset(indexes)
		for k := range sub.Y {
			if k < count[pair.i] {
				sub.Y[k] = 1
			} else {
				sub.Y[k] = -1
			}
		}

		pairOpts := opts.derive(p)
		pairLog := log.With().Int("first_label", classes[pair.i]).Int("second_label", classes[pair.j]).Logger()
		pairOpts.Logger = &pairLog

		cp, cn := weightedC[pair.i], weightedC[pair.j]
		if calibrate {
			a, b, err := binarySVCProbability(ctx, sub, param, cp, cn, pairOpts)
			if err != nil {
				return err
			}
			probA[p], probB[p] = a, b
		}
		df, err := trainOne(ctx, sub, param, cp, cn, pairLog)
		if err != nil {
			return err
		}
		decisions[p] = df
		return nil
	})
	if err != nil {
		return nil, err
	}

	// an example is kept if it is a support vector in any of its pairs
	nonZero := make([]bool, l)
	for p, pair := range pairs {
		ci := count[pair.i]
		for k, a := range decisions[p].alpha {
			if a == 0 {
				continue
			}
			if k < ci {
				nonZero[start[pair.i]+k] = true
			} else {
				nonZero[start[pair.j]+k-ci] = true
			}
		}
	}

	model := &Model{
		Param:    param,
		NrClass:  nrClass,
		Selected: prob.Selected,
		Label:    classes,
		Rho:      make([]float64, len(pairs)),
		NSV:      make([]int, nrClass),
	}
	for p := range pairs {
		model.Rho[p] = decisions[p].rho
	}
	if calibrate {
		model.ProbA, model.ProbB = probA, probB
	}

	var index []int
	for k := 0; k < nrClass; k++ {
		for m := 0; m < count[k]; m++ {
			if nonZero[start[k]+m] {
				model.NSV[k]++
				index = append(index, perm[start[k]+m])
				model.SVIndices = append(model.SVIndices, perm[start[k]+m]+1)
			}
		}
	}
	model.L = len(index)
	model.SV = BorrowedVectors{source: prob.X, index: index}
	log.Debug().Int("classes", nrClass).Int("total_sv", model.L).Ints("nsv", model.NSV).Msg("one-vs-one training finished")

	nzStart := make([]int, nrClass)
	for k := 1; k < nrClass; k++ {
		nzStart[k] = nzStart[k-1] + model.NSV[k-1]
	}
	if nrClass > 1 {
		model.SvCoef = make([][]float64, nrClass-1)
		for k := range model.SvCoef {
			model.SvCoef[k] = make([]float64, model.L)
		}
	}
	for p, pair := range pairs {
		i, j := pair.i, pair.j
		ci := count[i]
		alpha := decisions[p].alpha

		q := nzStart[i]
		for k := 0; k < ci; k++ {
			if nonZero[start[i]+k] {
				model.SvCoef[j-1][q] = alpha[k]
				q++
			}
		}
		q = nzStart[j]
		for k := 0; k < count[j]; k++ {
			if nonZero[start[j]+k] {
				model.SvCoef[i][q] = alpha[ci+k]
				q++
			}
		}
	}

	model.prepare()
	return model, nil
}
