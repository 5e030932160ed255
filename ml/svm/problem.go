package svm

import (
	"fmt"

	"text2phenotype.com/svm/ml"
)

// Problem is a read-only view over training examples. X is borrowed from the
// caller and never mutated; Y starts as a copy of the examples' class labels.
type Problem struct {
	X        []ml.FeatureVector
	Y        []float64
	Selected ml.FeatureSubset
}

// NewProblem uses the union of the indexes the examples store when selected is empty.
func NewProblem(x []ml.FeatureVector, selected ml.FeatureSubset) (*Problem, error) {
	if len(x) == 0 {
		return nil, ErrEmptyProblem
	}
	if len(selected) == 0 {
		selected = ml.UsedFeatures(x)
	}
	if err := selected.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = v.ClassLabel()
	}
	return &Problem{X: x, Y: y, Selected: selected}, nil
}

func (p *Problem) Len() int {
	return len(p.X)
}

// subset builds a problem over the given example indexes sharing the feature vectors.
func (p *Problem) subset(indexes []int) *Problem {
	sub := &Problem{
		X:        make([]ml.FeatureVector, len(indexes)),
		Y:        make([]float64, len(indexes)),
		Selected: p.Selected,
	}
	for k, i := range indexes {
		sub.X[k] = p.X[i]
		sub.Y[k] = p.Y[i]
	}
	return sub
}
