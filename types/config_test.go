package types

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"text2phenotype.com/svm/ml/svm"
)

func writeFile(t *testing.T, dir, name, content string) {
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadConfigurations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rbf.yaml", `
parameters:
  kernel_type: rbf
  gamma: "0.5"
  probability: "on"
folds: 10
seed: 42
`)
	writeFile(t, dir, "linear.yml", `
name: linear-svc
parameters:
  kernel_type: linear
  c: "4"
`)
	writeFile(t, dir, "broken.yaml", "parameters:\n  kernel_type: cubic\n")
	writeFile(t, dir, "notes.txt", "ignored")

	cfgs, err := LoadConfigurations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"linear-svc", "rbf"}, cfgs.Names())

	rbf, err := cfgs.Get("rbf")
	require.NoError(t, err)
	assert.Equal(t, 10, rbf.FoldCount())
	assert.Equal(t, int64(42), rbf.SeedOrDefault())
	param, err := rbf.Parameter(map[string]string{"C": "2"})
	require.NoError(t, err)
	assert.Equal(t, svm.KernelTypeRbf, param.KernelType)
	assert.Equal(t, 0.5, param.Gamma)
	assert.Equal(t, 2.0, param.C)
	assert.True(t, param.Probability)

	linear, err := cfgs.Get("linear-svc")
	require.NoError(t, err)
	assert.Equal(t, DefaultFolds, linear.FoldCount())
	assert.Equal(t, linear.SeedOrDefault(), linear.SeedOrDefault())
	assert.NotZero(t, linear.SeedOrDefault())

	_, err = cfgs.Get("broken")
	assert.Error(t, err)
}

func TestLoadConfigurationsMissingDir(t *testing.T) {
	_, err := LoadConfigurations(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
