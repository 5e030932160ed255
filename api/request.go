package api

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"

	"github.com/rs/zerolog"
	"text2phenotype.com/svm/ml"
	"text2phenotype.com/svm/ml/dataset"
	"text2phenotype.com/svm/ml/svm"
)

// Request serves predictions of one loaded model.
type Request struct {
	Model   *svm.Model
	Options svm.PredictOptions
}

type prediction struct {
	Name string `json:"name,omitempty"`
	svm.Prediction
}

// Predict reads dataset lines from the body and answers with one prediction per line.
// Lines are unlabeled unless the query has labeled=true.
func (req *Request) Predict(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	logger := makeRequestLogger(r)

	if r.Method != http.MethodPost {
		logger.Err(nil).Int("status", http.StatusMethodNotAllowed).Msg("Only 'POST' method is allowed here")
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	msg, err := ioutil.ReadAll(r.Body)
	if err != nil {
		logger.Err(err).Int("status", http.StatusBadRequest).Msg("Could not read request body")
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	opts := dataset.ReadOptions{Unlabeled: r.URL.Query().Get("labeled") != "true"}
	examples, err := dataset.Read(bytes.NewReader(msg), opts)
	if err != nil {
		logger.Err(err).Int("status", http.StatusBadRequest).Msg("Could not parse examples")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logger.Info().Int("examples", len(examples)).Msg("Starting predictions for request from API")
	predictions := make([]prediction, 0, len(examples))
	for _, x := range examples {
		p, err := req.predict(x, &logger)
		if err != nil {
			logger.Err(err).Int("status", http.StatusInternalServerError).Msg("Prediction failed")
			http.Error(w, "", http.StatusInternalServerError)
			return
		}
		predictions = append(predictions, prediction{Name: x.Name(), Prediction: p})
	}

	resp, err := json.Marshal(predictions)
	if err != nil {
		logger.Err(err).Int("status", http.StatusInternalServerError).Msg("Could not encode response")
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(resp)
	logger.Info().Int("status", http.StatusOK).Msg("Finished processing request")
}

func (req *Request) predict(x ml.FeatureVector, l *zerolog.Logger) (svm.Prediction, error) {
	if req.Model.Param.IsClassification() && req.Model.HasProbability() {
		opts := req.Options
		if opts.Logger == nil {
			opts.Logger = l
		}
		return req.Model.PredictProbability(x, opts)
	}
	decValues := req.Model.DecisionValues(x)
	return svm.Prediction{
		Label:          req.Model.Predict(x),
		DecisionValues: decValues,
	}, nil
}
