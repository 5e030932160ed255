package svm

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"text2phenotype.com/svm/ml"
)

// Coupling selects how pairwise probabilities become one class distribution.
type Coupling int

const (
	// CouplingPairwise solves the Wu, Lin and Weng fixed point over all pairs.
	CouplingPairwise Coupling = iota
	// CouplingVoteTopFour couples only the four classes with the most votes;
	// the rest get zero.
	CouplingVoteTopFour
)

var couplingNames = map[Coupling]string{
	CouplingPairwise:    "pairwise",
	CouplingVoteTopFour: "vote_top_four",
}

func (c Coupling) String() string {
	if name, ok := couplingNames[c]; ok {
		return name
	}
	return fmt.Sprintf("coupling(%d)", int(c))
}

func ParseCoupling(s string) (Coupling, error) {
	for c, name := range couplingNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown coupling %q", ErrInvalidParameter, s)
}

const (
	minPairProbability = 1e-7
	topVotedClasses    = 4
)

type PredictOptions struct {
	Coupling Coupling
	// SelectByProbability picks the most probable class instead of the most voted one.
	SelectByProbability bool
	// Logger receives a warning when coupling stops short of its tolerance.
	Logger *zerolog.Logger
}

type Prediction struct {
	Label          float64   `json:"label"`
	Probabilities  []float64 `json:"probabilities,omitempty"`
	Votes          []int     `json:"votes,omitempty"`
	DecisionValues []float64 `json:"decision_values"`
	// NotConverged marks probabilities taken from an unfinished coupling.
	NotConverged bool `json:"not_converged,omitempty"`
}

// DecisionValues returns one value per class pair, or a single value for
// one-class and regression models.
func (m *Model) DecisionValues(x ml.FeatureVector) []float64 {
	kvalue := m.kernelValues(x)

	if !m.Param.IsClassification() {
		sum := 0.0
		for i, coef := range m.SvCoef[0] {
			sum += coef * kvalue[i]
		}
		return []float64{sum - m.Rho[0]}
	}

	decValues := make([]float64, m.pairs())
	p := 0
	for i := 0; i < m.NrClass; i++ {
		for j := i + 1; j < m.NrClass; j++ {
			sum := 0.0
			si, sj := m.start[i], m.start[j]
			ci, cj := m.NSV[i], m.NSV[j]
			coef1, coef2 := m.SvCoef[j-1], m.SvCoef[i]

			for k := 0; k < ci; k++ {
				sum += coef1[si+k] * kvalue[si+k]
			}
			for k := 0; k < cj; k++ {
				sum += coef2[sj+k] * kvalue[sj+k]
			}
			decValues[p] = sum - m.Rho[p]
			p++
		}
	}
	return decValues
}

// votes tallies one vote per pair for the winning side.
func (m *Model) votes(decValues []float64) []int {
	vote := make([]int, m.NrClass)
	p := 0
	for i := 0; i < m.NrClass; i++ {
		for j := i + 1; j < m.NrClass; j++ {
			if decValues[p] > 0 {
				vote[i]++
			} else {
				vote[j]++
			}
			p++
		}
	}
	return vote
}

// argmaxInt breaks ties towards the lowest index.
func argmaxInt(values []int) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

func argmaxFloat(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

func (m *Model) decide(decValues []float64) float64 {
	switch m.Param.SvmType {
	case OneClass:
		if decValues[0] > 0 {
			return 1
		}
		return -1
	case EpsilonSvr, NuSvr:
		return decValues[0]
	}
	return float64(m.Label[argmaxInt(m.votes(decValues))])
}

// Predict returns the voted class label, the sign for one-class models, or the
// regression estimate.
func (m *Model) Predict(x ml.FeatureVector) float64 {
	return m.decide(m.DecisionValues(x))
}

// PredictProbability also returns calibrated class probabilities and votes for
// classification models. One-class and regression models return only the label.
func (m *Model) PredictProbability(x ml.FeatureVector, opts PredictOptions) (Prediction, error) {
	decValues := m.DecisionValues(x)
	prediction := Prediction{DecisionValues: decValues}
	if !m.Param.IsClassification() {
		prediction.Label = m.decide(decValues)
		return prediction, nil
	}
	if !m.HasProbability() {
		return Prediction{}, ErrNoProbabilityModel
	}

	k := m.NrClass
	pairwise := make([][]float64, k)
	for i := range pairwise {
		pairwise[i] = make([]float64, k)
	}
	p := 0
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			prob := m.pairProbability(p, decValues[p])
			prob = math.Min(math.Max(prob, minPairProbability), 1-minPairProbability)
			pairwise[i][j] = prob
			pairwise[j][i] = 1 - prob
			p++
		}
	}

	prediction.Votes = m.votes(decValues)
	converged := true
	switch opts.Coupling {
	case CouplingPairwise:
		prediction.Probabilities, converged = multiclassProbability(pairwise)
	case CouplingVoteTopFour:
		prediction.Probabilities, converged = voteTopFourProbability(pairwise, prediction.Votes)
	default:
		return Prediction{}, fmt.Errorf("%w: unknown coupling %d", ErrInvalidParameter, int(opts.Coupling))
	}
	if !converged {
		prediction.NotConverged = true
		if opts.Logger != nil {
			opts.Logger.Warn().
				Str("coupling", opts.Coupling.String()).
				Floats64("probabilities", prediction.Probabilities).
				Msg("probability coupling did not converge")
		}
	}

	if opts.SelectByProbability {
		prediction.Label = float64(m.Label[argmaxFloat(prediction.Probabilities)])
	} else {
		prediction.Label = float64(m.Label[argmaxInt(prediction.Votes)])
	}
	return prediction, nil
}

// pairProbability is P(first class of pair p | decision value f).
func (m *Model) pairProbability(p int, f float64) float64 {
	if m.Param.ProbSharpness > 0 {
		return 1 / (1 + math.Exp(-m.Param.ProbSharpness*f))
	}
	return sigmoidPredict(f, m.ProbA[p], m.ProbB[p])
}
