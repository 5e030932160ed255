package svm

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"text2phenotype.com/svm/ml"
)

type SvmType int

const (
	CSvc SvmType = iota
	NuSvc
	OneClass
	EpsilonSvr
	NuSvr
)

var svmTypeNames = []string{"c_svc", "nu_svc", "one_class", "epsilon_svr", "nu_svr"}

func (t SvmType) String() string {
	if t < 0 || int(t) >= len(svmTypeNames) {
		return fmt.Sprintf("svm_type(%d)", int(t))
	}
	return svmTypeNames[t]
}

func ParseSvmType(s string) (SvmType, error) {
	for i, name := range svmTypeNames {
		if strings.EqualFold(s, name) || s == strconv.Itoa(i) {
			return SvmType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown svm type %q", ErrInvalidParameter, s)
}

func (t SvmType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *SvmType) UnmarshalText(text []byte) error {
	parsed, err := ParseSvmType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type KernelType int

const (
	KernelTypeLinear KernelType = iota
	KernelTypePoly
	KernelTypeRbf
	KernelTypeSigmoid
	KernelTypePrecomputed
)

var kernelTypeNames = []string{"linear", "polynomial", "rbf", "sigmoid", "precomputed"}

func (t KernelType) String() string {
	if t < 0 || int(t) >= len(kernelTypeNames) {
		return fmt.Sprintf("kernel_type(%d)", int(t))
	}
	return kernelTypeNames[t]
}

func ParseKernelType(s string) (KernelType, error) {
	for i, name := range kernelTypeNames {
		if strings.EqualFold(s, name) || s == strconv.Itoa(i) {
			return KernelType(i), nil
		}
	}
	if strings.EqualFold(s, "poly") {
		return KernelTypePoly, nil
	}
	return 0, fmt.Errorf("%w: unknown kernel type %q", ErrInvalidParameter, s)
}

func (t KernelType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *KernelType) UnmarshalText(text []byte) error {
	parsed, err := ParseKernelType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Parameter is fixed for the duration of a training run.
type Parameter struct {
	SvmType    SvmType    `json:"svm_type" yaml:"svm_type"`
	KernelType KernelType `json:"kernel_type" yaml:"kernel_type"`
	Degree     int        `json:"degree" yaml:"degree"`
	Gamma      float64    `json:"gamma" yaml:"gamma"`
	Coef0      float64    `json:"coef_0" yaml:"coef0"`

	CacheSize       float64   `json:"cache_size" yaml:"cache_size"` // MB
	Eps             float64   `json:"eps" yaml:"eps"`
	C               float64   `json:"c" yaml:"c"`
	WeightLabel     []int     `json:"weight_label" yaml:"weight_label"`
	Weight          []float64 `json:"weight" yaml:"weight"`
	Nu              float64   `json:"nu" yaml:"nu"`
	P               float64   `json:"p" yaml:"p"`
	Shrinking       bool      `json:"shrinking" yaml:"shrinking"`
	Probability     bool      `json:"probability" yaml:"probability"`
	ProbSharpness   float64   `json:"prob_sharpness" yaml:"prob_sharpness"`
	NormalizeMargin bool      `json:"normalize_margin" yaml:"normalize_margin"`
}

func DefaultParameter() Parameter {
	return Parameter{
		SvmType:    CSvc,
		KernelType: KernelTypeRbf,
		Degree:     3,
		CacheSize:  100,
		Eps:        1e-3,
		C:          1,
		Nu:         0.5,
		P:          0.1,
		Shrinking:  true,
	}
}

func (p Parameter) OneOfTypes(types ...SvmType) bool {
	for _, tp := range types {
		if p.SvmType == tp {
			return true
		}
	}
	return false
}

func (p Parameter) IsClassification() bool {
	return p.OneOfTypes(CSvc, NuSvc)
}

func (p Parameter) usesGamma() bool {
	return p.KernelType == KernelTypePoly || p.KernelType == KernelTypeRbf || p.KernelType == KernelTypeSigmoid
}

func (p Parameter) clone() Parameter {
	c := p
	c.WeightLabel = append([]int(nil), p.WeightLabel...)
	c.Weight = append([]float64(nil), p.Weight...)
	return c
}

// Check validates the parameters against the problem they are going to be trained on.
func (p Parameter) Check(prob *Problem) error {
	if p.SvmType < CSvc || p.SvmType > NuSvr {
		return fmt.Errorf("%w: unknown svm type %d", ErrInvalidParameter, int(p.SvmType))
	}
	if p.KernelType < KernelTypeLinear || p.KernelType > KernelTypePrecomputed {
		return fmt.Errorf("%w: unknown kernel type %d", ErrInvalidParameter, int(p.KernelType))
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"gamma", p.Gamma}, {"coef0", p.Coef0}, {"cache_size", p.CacheSize}, {"eps", p.Eps},
		{"C", p.C}, {"nu", p.Nu}, {"p", p.P}, {"prob_sharpness", p.ProbSharpness},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidParameter, f.name, f.value)
		}
	}
	if p.Gamma < 0 {
		return fmt.Errorf("%w: gamma < 0", ErrInvalidParameter)
	}
	if p.Degree < 0 {
		return fmt.Errorf("%w: degree of polynomial kernel < 0", ErrInvalidParameter)
	}
	if p.CacheSize <= 0 {
		return fmt.Errorf("%w: cache_size <= 0", ErrInvalidParameter)
	}
	if p.Eps <= 0 {
		return fmt.Errorf("%w: eps <= 0", ErrInvalidParameter)
	}
	if p.OneOfTypes(CSvc, EpsilonSvr, NuSvr) && p.C <= 0 {
		return fmt.Errorf("%w: C <= 0", ErrInvalidParameter)
	}
	if p.OneOfTypes(NuSvc, OneClass, NuSvr) && (p.Nu <= 0 || p.Nu > 1) {
		return fmt.Errorf("%w: nu <= 0 or nu > 1", ErrInvalidParameter)
	}
	if p.SvmType == EpsilonSvr && p.P < 0 {
		return fmt.Errorf("%w: p < 0", ErrInvalidParameter)
	}
	if p.Probability && p.SvmType == OneClass {
		return fmt.Errorf("%w: one-class SVM probability output not supported", ErrInvalidParameter)
	}
	if p.ProbSharpness < 0 {
		return fmt.Errorf("%w: prob_sharpness < 0", ErrInvalidParameter)
	}
	if len(p.WeightLabel) != len(p.Weight) {
		return fmt.Errorf("%w: %d weight labels for %d weights", ErrInvalidParameter, len(p.WeightLabel), len(p.Weight))
	}
	for _, w := range p.Weight {
		if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: class weight %v must be positive", ErrInvalidParameter, w)
		}
	}

	if prob == nil {
		return nil
	}
	if prob.Len() == 0 {
		return ErrEmptyProblem
	}
	if p.KernelType == KernelTypePrecomputed {
		for i, x := range prob.X {
			id := int(x.Feature(0))
			if id <= 0 || id > prob.Len() {
				return fmt.Errorf("%w: precomputed kernel row %d has invalid sample serial number %d", ErrInvalidParameter, i, id)
			}
		}
	}
	if p.SvmType == NuSvc {
		_, _, count, _ := ml.GroupByClass(prob.Y)
		for i := range count {
			for j := i + 1; j < len(count); j++ {
				n1, n2 := float64(count[i]), float64(count[j])
				if p.Nu*(n1+n2)/2 > math.Min(n1, n2) {
					return fmt.Errorf("%w: specified nu is infeasible", ErrInvalidParameter)
				}
			}
		}
	}
	return nil
}

// option keys of the flat configuration surface
const (
	OptionSvmType         = "svm_type"
	OptionKernelType      = "kernel_type"
	OptionDegree          = "degree"
	OptionGamma           = "gamma"
	OptionCoef0           = "coef0"
	OptionCacheSize       = "cache_size"
	OptionEps             = "eps"
	OptionC               = "c"
	OptionWeight          = "weight"
	OptionNu              = "nu"
	OptionP               = "p"
	OptionShrinking       = "shrinking"
	OptionProbability     = "probability"
	OptionProbSharpness   = "prob_sharpness"
	OptionNormalizeMargin = "normalize_margin"
)

// ParseOptions builds a Parameter from a flat key/value option set, starting from DefaultParameter.
func ParseOptions(options map[string]string) (Parameter, error) {
	param := DefaultParameter()
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := strings.TrimSpace(options[key])
		var err error
		switch strings.ToLower(key) {
		case OptionSvmType:
			param.SvmType, err = ParseSvmType(value)
		case OptionKernelType:
			param.KernelType, err = ParseKernelType(value)
		case OptionDegree:
			param.Degree, err = strconv.Atoi(value)
		case OptionGamma:
			param.Gamma, err = strconv.ParseFloat(value, 64)
		case OptionCoef0:
			param.Coef0, err = strconv.ParseFloat(value, 64)
		case OptionCacheSize:
			param.CacheSize, err = strconv.ParseFloat(value, 64)
		case OptionEps:
			param.Eps, err = strconv.ParseFloat(value, 64)
		case OptionC:
			param.C, err = strconv.ParseFloat(value, 64)
		case OptionNu:
			param.Nu, err = strconv.ParseFloat(value, 64)
		case OptionP:
			param.P, err = strconv.ParseFloat(value, 64)
		case OptionShrinking:
			param.Shrinking, err = parseSwitch(value)
		case OptionProbability:
			param.Probability, err = parseSwitch(value)
		case OptionProbSharpness:
			param.ProbSharpness, err = strconv.ParseFloat(value, 64)
		case OptionNormalizeMargin:
			param.NormalizeMargin, err = parseSwitch(value)
		case OptionWeight:
			param.WeightLabel, param.Weight, err = parseWeights(value)
		default:
			return Parameter{}, fmt.Errorf("%w: unknown option %q", ErrInvalidParameter, key)
		}
		if err != nil {
			return Parameter{}, fmt.Errorf("%w: option %s=%q: %v", ErrInvalidParameter, key, value, err)
		}
	}
	return param, nil
}

// Options is the inverse of ParseOptions.
func (p Parameter) Options() map[string]string {
	formatFloat := func(v float64) string {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	options := map[string]string{
		OptionSvmType:         p.SvmType.String(),
		OptionKernelType:      p.KernelType.String(),
		OptionDegree:          strconv.Itoa(p.Degree),
		OptionGamma:           formatFloat(p.Gamma),
		OptionCoef0:           formatFloat(p.Coef0),
		OptionCacheSize:       formatFloat(p.CacheSize),
		OptionEps:             formatFloat(p.Eps),
		OptionC:               formatFloat(p.C),
		OptionNu:              formatFloat(p.Nu),
		OptionP:               formatFloat(p.P),
		OptionShrinking:       strconv.FormatBool(p.Shrinking),
		OptionProbability:     strconv.FormatBool(p.Probability),
		OptionProbSharpness:   formatFloat(p.ProbSharpness),
		OptionNormalizeMargin: strconv.FormatBool(p.NormalizeMargin),
	}
	if len(p.WeightLabel) > 0 {
		pairs := make([]string, len(p.WeightLabel))
		for i := range p.WeightLabel {
			pairs[i] = fmt.Sprintf("%d:%s", p.WeightLabel[i], formatFloat(p.Weight[i]))
		}
		options[OptionWeight] = strings.Join(pairs, ",")
	}
	return options
}

func parseSwitch(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "1", "true", "on", "yes":
		return true, nil
	case "0", "false", "off", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on/off value")
}

// parseWeights reads "label:multiplier[,label:multiplier...]".
func parseWeights(value string) ([]int, []float64, error) {
	if value == "" {
		return nil, nil, nil
	}
	var labels []int
	var weights []float64
	for _, pair := range strings.Split(value, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			return nil, nil, fmt.Errorf("weight %q is not label:multiplier", pair)
		}
		label, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, nil, err
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, nil, err
		}
		labels = append(labels, label)
		weights = append(weights, weight)
	}
	return labels, weights, nil
}
