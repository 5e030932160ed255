package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"text2phenotype.com/svm/logger"
	"text2phenotype.com/svm/ml/dataset"
	"text2phenotype.com/svm/ml/svm"
	"text2phenotype.com/svm/types"
)

type globalFlags struct {
	verbose bool
	workers int
	seed    int64
}

func (g *globalFlags) logger() zerolog.Logger {
	l := logger.NewLogger("svmtool")
	if g.verbose {
		l = l.Level(zerolog.DebugLevel)
	}
	return l
}

func (g *globalFlags) options(cfg types.Configuration, l *zerolog.Logger) svm.Options {
	seed := g.seed
	if seed == 0 {
		seed = cfg.SeedOrDefault()
	}
	return svm.Options{Logger: l, Seed: seed, Workers: g.workers}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "svmtool",
		Short: "Train, evaluate and apply support vector machines",
		Long: `svmtool works on sparse text datasets, one example per line:

  <label> <index>:<value> <index>:<value> ... [# name]

Parameters come from a YAML configuration (--config) and/or key=value
pairs (--set), e.g. --set svm_type=nu_svc --set kernel_type=rbf.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log solver progress")
	rootCmd.PersistentFlags().IntVar(&flags.workers, "workers", 1, "number of sub-problems solved concurrently")
	rootCmd.PersistentFlags().Int64Var(&flags.seed, "seed", 0, "random seed (default derived from the configuration name)")

	rootCmd.AddCommand(
		newTrainCmd(flags),
		newPredictCmd(flags),
		newCrossValidateCmd(flags),
		newSuperviseCmd(),
	)
	return rootCmd
}

// trainingFlags are shared by the commands that build a model from a dataset.
type trainingFlags struct {
	data        string
	config      string
	set         []string
	deduplicate bool
}

func (f *trainingFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.data, "data", "d", "", "training dataset")
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "YAML training configuration")
	cmd.Flags().StringArrayVarP(&f.set, "set", "s", nil, "parameter override as key=value, repeatable")
	cmd.Flags().BoolVar(&f.deduplicate, "dedup", false, "drop duplicated dataset lines")
}

func (f *trainingFlags) configuration() (types.Configuration, error) {
	if f.config == "" {
		return types.Configuration{Name: "svmtool"}, nil
	}
	return types.LoadConfiguration(f.config)
}

// load reads the configuration, the overrides and the dataset.
func (f *trainingFlags) load() (types.Configuration, svm.Parameter, *svm.Problem, error) {
	if f.data == "" {
		return types.Configuration{}, svm.Parameter{}, nil, fmt.Errorf("--data is required")
	}
	cfg, err := f.configuration()
	if err != nil {
		return cfg, svm.Parameter{}, nil, err
	}
	overrides, err := parseSets(f.set)
	if err != nil {
		return cfg, svm.Parameter{}, nil, err
	}
	param, err := cfg.Parameter(overrides)
	if err != nil {
		return cfg, svm.Parameter{}, nil, err
	}
	examples, err := dataset.ReadFile(f.data, dataset.ReadOptions{Deduplicate: f.deduplicate})
	if err != nil {
		return cfg, svm.Parameter{}, nil, err
	}
	prob, err := svm.NewProblem(examples, nil)
	if err != nil {
		return cfg, svm.Parameter{}, nil, err
	}
	return cfg, param, prob, nil
}

func parseSets(sets []string) (map[string]string, error) {
	overrides := make(map[string]string, len(sets))
	for _, set := range sets {
		parts := strings.SplitN(set, "=", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("override %q is not key=value", set)
		}
		overrides[strings.TrimSpace(parts[0])] = parts[1]
	}
	return overrides, nil
}
