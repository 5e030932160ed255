package svm

import "errors"

var (
	ErrInvalidParameter   = errors.New("invalid svm parameter")
	ErrEmptyProblem       = errors.New("problem has no examples")
	ErrMalformedModel     = errors.New("malformed svm model")
	ErrNoProbabilityModel = errors.New("model has no probability information")
)
