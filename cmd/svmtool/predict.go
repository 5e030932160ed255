package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
	"text2phenotype.com/svm/ml"
	"text2phenotype.com/svm/ml/dataset"
	"text2phenotype.com/svm/ml/svm"
)

type predictFlags struct {
	data        string
	model       string
	output      string
	probability bool
	coupling    string
	unlabeled   bool
}

func newPredictCmd(global *globalFlags) *cobra.Command {
	var flags predictFlags
	predictCmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict every example of a dataset with a saved model",
		Long: `Writes one predicted label per line. With --probability the first line
lists the class labels and every prediction is followed by the class
probabilities in that order. Labeled input also gets accuracy (or mean
squared error for regression) logged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.data == "" || flags.model == "" {
				return fmt.Errorf("--data and --model are required")
			}
			model, err := svm.LoadFile(flags.model)
			if err != nil {
				return err
			}
			examples, err := dataset.ReadFile(flags.data, dataset.ReadOptions{Unlabeled: flags.unlabeled})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if flags.output != "" && flags.output != "-" {
				f, err := os.Create(flags.output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			l := global.logger()
			predicted, err := predict(out, model, examples, flags, &l)
			if err != nil {
				return err
			}
			if !flags.unlabeled {
				logScores(&l, model, examples, predicted)
			}
			return nil
		},
	}
	predictCmd.Flags().StringVarP(&flags.data, "data", "d", "", "dataset to predict")
	predictCmd.Flags().StringVarP(&flags.model, "model", "m", "", "model file")
	predictCmd.Flags().StringVarP(&flags.output, "output", "o", "-", "output file")
	predictCmd.Flags().BoolVarP(&flags.probability, "probability", "b", false, "output class probabilities")
	predictCmd.Flags().StringVar(&flags.coupling, "coupling", svm.CouplingPairwise.String(), "probability coupling: pairwise or vote_top_four")
	predictCmd.Flags().BoolVar(&flags.unlabeled, "unlabeled", false, "dataset lines carry no label")
	return predictCmd
}

func predict(w io.Writer, model *svm.Model, examples []ml.FeatureVector, flags predictFlags, l *zerolog.Logger) ([]float64, error) {
	out := bufio.NewWriter(w)
	withProbability := flags.probability && model.Param.IsClassification()
	opts := svm.PredictOptions{Logger: l}
	if withProbability {
		if !model.HasProbability() {
			return nil, svm.ErrNoProbabilityModel
		}
		coupling, err := svm.ParseCoupling(flags.coupling)
		if err != nil {
			return nil, err
		}
		opts.Coupling = coupling
		out.WriteString("labels")
		for _, label := range model.Label {
			fmt.Fprintf(out, " %d", label)
		}
		out.WriteString("\n")
	}

	predicted := make([]float64, len(examples))
	for i, x := range examples {
		if !withProbability {
			predicted[i] = model.Predict(x)
			fmt.Fprintln(out, formatFloat(predicted[i]))
			continue
		}
		p, err := model.PredictProbability(x, opts)
		if err != nil {
			return nil, err
		}
		predicted[i] = p.Label
		out.WriteString(formatFloat(p.Label))
		for _, prob := range p.Probabilities {
			fmt.Fprintf(out, " %g", prob)
		}
		out.WriteString("\n")
	}
	return predicted, out.Flush()
}

func logScores(l *zerolog.Logger, model *svm.Model, examples []ml.FeatureVector, predicted []float64) {
	target := make([]float64, len(examples))
	correct := 0
	for i, x := range examples {
		target[i] = x.ClassLabel()
		if predicted[i] == target[i] {
			correct++
		}
	}
	if len(examples) == 0 {
		return
	}
	if model.Param.IsClassification() || model.Param.SvmType == svm.OneClass {
		l.Info().
			Float64("accuracy", float64(correct)/float64(len(examples))).
			Int("correct", correct).
			Int("total", len(examples)).
			Msg("Prediction finished")
		return
	}
	mse := 0.0
	for i := range target {
		mse += (predicted[i] - target[i]) * (predicted[i] - target[i])
	}
	r := stat.Correlation(predicted, target, nil)
	l.Info().
		Float64("mean_squared_error", mse/float64(len(target))).
		Float64("squared_correlation", r*r).
		Msg("Prediction finished")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
