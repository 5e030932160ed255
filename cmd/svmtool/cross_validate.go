package main

import (
	"context"
	"encoding/json"
	"io/ioutil"

	"github.com/spf13/cobra"
	"text2phenotype.com/svm/ml/svm"
)

func newCrossValidateCmd(global *globalFlags) *cobra.Command {
	var flags trainingFlags
	var folds int
	var reportPath string
	cvCmd := &cobra.Command{
		Use:     "cv",
		Aliases: []string{"cross-validate"},
		Short:   "Run stratified k-fold cross validation and print a JSON report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, param, prob, err := flags.load()
			if err != nil {
				return err
			}
			if folds < 2 {
				folds = cfg.FoldCount()
			}
			l := global.logger()
			cv, err := svm.CrossValidate(context.Background(), prob, param, folds, global.options(cfg, &l))
			if err != nil {
				return err
			}
			report, err := json.MarshalIndent(cv, "", "  ")
			if err != nil {
				return err
			}
			if param.IsClassification() || param.SvmType == svm.OneClass {
				l.Info().Float64("accuracy", cv.Accuracy).Int("folds", cv.Folds).Msg("Cross validation finished")
			} else {
				l.Info().
					Float64("mean_squared_error", cv.MeanSquaredError).
					Float64("squared_correlation", cv.SquaredCorrelation).
					Int("folds", cv.Folds).
					Msg("Cross validation finished")
			}
			if reportPath != "" {
				return ioutil.WriteFile(reportPath, report, 0644)
			}
			_, err = cmd.OutOrStdout().Write(append(report, '\n'))
			return err
		},
	}
	flags.register(cvCmd)
	cvCmd.Flags().IntVarP(&folds, "folds", "k", 0, "number of folds (default from the configuration, 5 otherwise)")
	cvCmd.Flags().StringVarP(&reportPath, "report", "r", "", "write the report to a file instead of stdout")
	return cvCmd
}
