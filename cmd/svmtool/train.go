package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"text2phenotype.com/svm/ml/svm"
)

func newTrainCmd(global *globalFlags) *cobra.Command {
	var flags trainingFlags
	var modelPath string
	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model and save it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if modelPath == "" {
				return fmt.Errorf("--model is required")
			}
			cfg, param, prob, err := flags.load()
			if err != nil {
				return err
			}
			l := global.logger()
			model, err := svm.Train(context.Background(), prob, param, global.options(cfg, &l))
			if err != nil {
				return err
			}
			if err = model.SaveFile(modelPath); err != nil {
				return err
			}
			l.Info().
				Int("nr_class", model.NrClass).
				Int("total_sv", model.L).
				Str("path", modelPath).
				Msg("Model saved")
			return nil
		},
	}
	flags.register(trainCmd)
	trainCmd.Flags().StringVarP(&modelPath, "model", "m", "", "output model file")
	return trainCmd
}
