package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"text2phenotype.com/svm/api"
	"text2phenotype.com/svm/logger"
	"text2phenotype.com/svm/ml/svm"
	"text2phenotype.com/svm/types"
	"text2phenotype.com/svm/worker"
)

type Config struct {
	ConfigPath    string `envconfig:"SVM_CONFIG_PATH" required:"true"`
	ModelPath     string `envconfig:"SVM_MODEL_PATH" default:""`
	Coupling      string `envconfig:"SVM_PREDICT_COUPLING" default:"pairwise"`
	RestAPIActive bool   `envconfig:"SVM_REST_API_ACTIVE" default:"false"`
	RestAPIPort   string `envconfig:"SVM_REST_API_PORT" default:"10000"`
}

const configsLoadMaxRetries = 5

func main() {
	logger.SetupLogging()
	svmLogger := logger.NewLogger("Main")
	fatalErrLogger := svmLogger.Fatal().Caller()
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		fatalErrLogger.Err(err).Msg("Failed to read environment")
		os.Exit(1)
	}

	configsChannel := make(chan types.Configurations)
	go func() {
		for retry := 0; retry < configsLoadMaxRetries; retry++ {
			cfgs, err := types.LoadConfigurations(config.ConfigPath)
			if err != nil {
				svmLogger.Err(err).Msg("Failed to load configurations. Retrying in 5 sec")
				time.Sleep(5 * time.Second)
				continue
			}
			svmLogger.Info().Strs("names", cfgs.Names()).Msgf("Loaded %d configurations", len(cfgs))
			configsChannel <- cfgs
			return
		}
		fatalErrLogger.Msgf("Could not load configurations after %d retries, exiting", configsLoadMaxRetries)
		os.Exit(1)
	}()

	// block until configurations load
	cfgs := <-configsChannel

	if config.RestAPIActive {
		apiRequest, err := newAPIRequest(config)
		if err != nil {
			fatalErrLogger.Err(err).Str("path", config.ModelPath).Msg("Failed to load model for REST API")
			os.Exit(1)
		}
		go func() {
			svmLogger.Info().Msg("Starting API service")
			http.HandleFunc("/predict", apiRequest.Predict)
			host := fmt.Sprintf(":%s", config.RestAPIPort)
			svmLogger.Info().Msgf("REST API on %s", host)
			err := http.ListenAndServe(host, nil)
			fatalErrLogger.Err(err).Msg("REST API stopped with error")
		}()
	}

	svmLogger.Info().Msg("Start SVM Worker")
	for {
		rmqWorker, err := worker.New(cfgs)
		if err != nil {
			svmLogger.Fatal().Err(err).Msg("Could not initialize RMQ worker")
			os.Exit(1)
		}
		err = rmqWorker.StartWorker()
		if err != nil {
			svmLogger.Err(err).Msg("Worker returned with error. Launching new in 5 seconds")
			time.Sleep(5 * time.Second)
		}
	}
}

func newAPIRequest(config Config) (*api.Request, error) {
	if config.ModelPath == "" {
		return nil, fmt.Errorf("SVM_MODEL_PATH is required when the REST API is active")
	}
	coupling, err := svm.ParseCoupling(config.Coupling)
	if err != nil {
		return nil, err
	}
	model, err := svm.LoadFile(config.ModelPath)
	if err != nil {
		return nil, err
	}
	return &api.Request{
		Model:   model,
		Options: svm.PredictOptions{Coupling: coupling},
	}, nil
}
