package svm

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"text2phenotype.com/svm/ml"
)

func roundTrip(t *testing.T, model *Model) *Model {
	var buf bytes.Buffer
	require.NoError(t, model.Save(&buf))
	loaded, err := Load(&buf)
	require.NoError(t, err)
	return loaded
}

func TestModelRoundTrip(t *testing.T) {
	trainSet := newTestProblem(t, clusters(31, 20, 1, cluster{1, 0, 0}, cluster{2, 5, 0}, cluster{3, 0, 5}))
	heldOut := clusters(32, 5, 1.5, cluster{1, 0, 0}, cluster{2, 5, 0}, cluster{3, 0, 5})

	tests := []struct {
		name  string
		param func() Parameter
	}{
		{"uncalibrated rbf", func() Parameter {
			p := DefaultParameter()
			p.Gamma = 0.25
			return p
		}},
		{"calibrated polynomial", func() Parameter {
			p := DefaultParameter()
			p.KernelType = KernelTypePoly
			p.Gamma = 0.1
			p.Coef0 = 1
			p.Degree = 2
			p.Probability = true
			return p
		}},
		{"fixed sharpness sigmoid", func() Parameter {
			p := DefaultParameter()
			p.KernelType = KernelTypeSigmoid
			p.Gamma = 0.01
			p.Probability = true
			p.ProbSharpness = 1.5
			return p
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := Train(context.Background(), trainSet, tt.param(), Options{Seed: 9})
			require.NoError(t, err)
			loaded := roundTrip(t, model)

			opts := []cmp.Option{cmpopts.EquateEmpty()}
			assert.Empty(t, cmp.Diff(model.Rho, loaded.Rho, opts...))
			assert.Empty(t, cmp.Diff(model.ProbA, loaded.ProbA, opts...))
			assert.Empty(t, cmp.Diff(model.ProbB, loaded.ProbB, opts...))
			assert.Empty(t, cmp.Diff(model.SvCoef, loaded.SvCoef, opts...))
			assert.Equal(t, model.Label, loaded.Label)
			assert.Equal(t, model.NSV, loaded.NSV)
			assert.Equal(t, model.Selected, loaded.Selected)
			assert.Equal(t, model.Param.KernelType, loaded.Param.KernelType)
			assert.Equal(t, model.Param.Gamma, loaded.Param.Gamma)

			for _, x := range heldOut {
				assert.Equal(t, model.Predict(x), loaded.Predict(x))
				assert.Equal(t, model.DecisionValues(x), loaded.DecisionValues(x))
				if !model.Param.Probability {
					continue
				}
				want, err := model.PredictProbability(x, PredictOptions{})
				require.NoError(t, err)
				got, err := loaded.PredictProbability(x, PredictOptions{})
				require.NoError(t, err)
				assert.Empty(t, cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)))
			}
		})
	}
}

func TestModelRoundTripRegression(t *testing.T) {
	var x []ml.FeatureVector
	for i := 0; i < 30; i++ {
		v := float64(i) / 30
		x = append(x, ml.NewDenseVector(v*v, v, 1-v))
	}
	prob := newTestProblem(t, x)
	param := DefaultParameter()
	param.SvmType = EpsilonSvr
	param.Gamma = 1
	param.Probability = true

	model, err := Train(context.Background(), prob, param, Options{Seed: 2})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.svm")
	require.NoError(t, model.SaveFile(path))
	loaded, err := LoadFile(path)
	require.NoError(t, err)

	assert.Nil(t, loaded.Label)
	assert.Nil(t, loaded.NSV)
	assert.Equal(t, model.ProbA, loaded.ProbA)
	for _, v := range x {
		assert.Equal(t, model.Predict(v), loaded.Predict(v))
	}
}

func TestModelSaveFormat(t *testing.T) {
	model := &Model{
		Param:    Parameter{SvmType: CSvc, KernelType: KernelTypeLinear},
		NrClass:  2,
		L:        2,
		Selected: ml.NewFeatureSubset(0, 1, 2, 5),
		SV: OwnedVectors{
			ml.NewSparseVector(0, []ml.SparseEntry{{Index: 0, Value: 1}, {Index: 2, Value: 0.5}}),
			ml.NewSparseVector(0, []ml.SparseEntry{{Index: 5, Value: -2}, {Index: 7, Value: 9}}),
		},
		SvCoef: [][]float64{{1, -1}},
		Rho:    []float64{0.25},
		Label:  ml.ClassList{1, -1},
		NSV:    []int{1, 1},
	}
	var buf bytes.Buffer
	require.NoError(t, model.Save(&buf))

	want := strings.Join([]string{
		"svm_type c_svc",
		"kernel_type linear",
		"features 0-2 5",
		"nr_class 2",
		"total_sv 2",
		"rho 0.25",
		"label 1 -1",
		"nr_sv 1 1",
		"SV",
		"1 0:1 2:0.5",
		"-1 5:-2",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

const validModel = `svm_type c_svc
kernel_type linear
nr_class 2
total_sv 2
rho 0.5
label 1 -1
nr_sv 1 1
SV
1 0:1 1:2
-1 0:3 1:4
`

func TestLoadValidModel(t *testing.T) {
	model, err := Load(strings.NewReader(validModel))
	require.NoError(t, err)
	assert.Equal(t, ml.FeatureSubset{0, 1}, model.Selected)
	assert.IsType(t, OwnedVectors{}, model.SV)

	assert.Equal(t, []float64{1.5}, model.DecisionValues(ml.NewDenseVector(0, -1, 0)))
	assert.Equal(t, 1.0, model.Predict(ml.NewDenseVector(0, -1, 0)))
	assert.Equal(t, -1.0, model.Predict(ml.NewDenseVector(0, 1, 0)))
}

func TestLoadRejectsMalformedModels(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
	}{
		{"unknown svm type", [2]string{"svm_type c_svc", "svm_type c_svm"}},
		{"unknown kernel", [2]string{"kernel_type linear", "kernel_type cubic"}},
		{"unknown header", [2]string{"nr_class 2", "nr_class 2\nweights 1"}},
		{"too many declared vectors", [2]string{"total_sv 2", "total_sv 3"}},
		{"too few declared vectors", [2]string{"total_sv 2", "total_sv 1"}},
		{"rho count", [2]string{"rho 0.5", "rho 0.5 0.1"}},
		{"label count", [2]string{"label 1 -1", "label 1"}},
		{"nr_sv total", [2]string{"nr_sv 1 1", "nr_sv 2 1"}},
		{"missing label", [2]string{"label 1 -1\n", ""}},
		{"probA without probB", [2]string{"nr_sv 1 1", "probA 1\nnr_sv 1 1"}},
		{"missing SV section", [2]string{"SV\n1 0:1 1:2\n-1 0:3 1:4\n", ""}},
		{"bad feature", [2]string{"1 0:1 1:2", "1 0:1 1-2"}},
		{"bad coefficient", [2]string{"-1 0:3", "x 0:3"}},
		{"duplicate header", [2]string{"rho 0.5", "rho 0.5\nrho 0.5"}},
		{"regression with labels", [2]string{"svm_type c_svc", "svm_type epsilon_svr"}},
		{"descending feature range", [2]string{"nr_class 2", "features 5-1\nnr_class 2"}},
		{"oversized feature range", [2]string{"nr_class 2", "features 0-9000000000\nnr_class 2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Replace(validModel, tt.replace[0], tt.replace[1], 1)
			require.NotEqual(t, validModel, text)
			model, err := Load(strings.NewReader(text))
			assert.Nil(t, model)
			assert.True(t, errors.Is(err, ErrMalformedModel), "got %v", err)
		})
	}
}

func TestLoadDeclaredCountsDoNotAllocate(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"single class without vectors", "svm_type c_svc\nkernel_type linear\nnr_class 1\ntotal_sv 100000000000000\n" +
			"rho\nlabel 1\nnr_sv 100000000000000\nSV\n"},
		{"two classes with one vector", "svm_type c_svc\nkernel_type linear\nnr_class 2\ntotal_sv 100000000000000\n" +
			"rho 0\nlabel 1 -1\nnr_sv 50000000000000 50000000000000\nSV\n1 0:1\n"},
		{"regression without vectors", "svm_type epsilon_svr\nkernel_type linear\nnr_class 2\ntotal_sv 100000000000000\nrho 0\nSV\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var model *Model
			var err error
			require.NotPanics(t, func() { model, err = Load(strings.NewReader(tt.text)) })
			assert.Nil(t, model)
			assert.True(t, errors.Is(err, ErrMalformedModel), "got %v", err)
		})
	}
}

func TestLoadSelectsStoredIndexes(t *testing.T) {
	text := strings.Replace(validModel, "-1 0:3 1:4", "-1 0:3 2000000000:4", 1)
	model, err := Load(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, ml.FeatureSubset{0, 1, 2000000000}, model.Selected)

	x := ml.NewSparseVector(0, []ml.SparseEntry{{Index: 0, Value: -1}})
	assert.Equal(t, []float64{1.5}, model.DecisionValues(x))
}
