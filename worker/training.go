package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"text2phenotype.com/svm/ml/dataset"
	"text2phenotype.com/svm/ml/svm"
	"text2phenotype.com/svm/types"
	"text2phenotype.com/svm/utils"
)

type jobResult struct {
	modelKey  string
	reportKey string
	accuracy  *float64
}

func (worker *Worker) runJob(ctx context.Context, task *Task) (result jobResult, err error) {
	defer utils.RecoverWithError(&err)
	task.taskLogger.Info().Msgf("Processing message from RMQ, attempt # %d", task.job.Status.Attempts+1)
	if worker.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, worker.config.JobTimeout)
		defer cancel()
	}

	cfg, err := worker.configuration(task)
	if err != nil {
		return result, err
	}
	param, err := cfg.Parameter(task.job.Parameters)
	if err != nil {
		return result, err
	}

	data, err := worker.s3.getDataset(ctx, task)
	if err != nil {
		task.taskLogger.Err(err).Caller().Msg("Could not fetch dataset from s3")
		return result, fmt.Errorf("failed fetch dataset from s3: %w", err)
	}
	examples, err := dataset.Read(bytes.NewReader(data), dataset.ReadOptions{Deduplicate: worker.config.Deduplicate})
	if err != nil {
		return result, err
	}
	prob, err := svm.NewProblem(examples, nil)
	if err != nil {
		return result, err
	}
	opts := svm.Options{
		Logger:  task.taskLogger,
		Seed:    jobSeed(task, cfg),
		Workers: worker.config.TrainWorkers,
	}
	task.taskLogger.Info().
		Int("examples", prob.Len()).
		Int("features", len(prob.Selected)).
		Str("svm_type", param.SvmType.String()).
		Str("kernel_type", param.KernelType.String()).
		Msg("Dataset loaded")

	switch task.message.WorkType {
	case WorkTypeTrain:
		return worker.train(ctx, task, prob, param, opts)
	case WorkTypeCrossValidate:
		folds := task.job.Folds
		if folds < 2 {
			folds = cfg.FoldCount()
		}
		return worker.crossValidate(ctx, task, prob, param, folds, opts)
	}
	return result, errors.New("unknown work type")
}

func (worker *Worker) configuration(task *Task) (types.Configuration, error) {
	if task.job.ConfigName == "" {
		return types.Configuration{Name: task.job.JobID}, nil
	}
	return worker.configs.Get(task.job.ConfigName)
}

// jobSeed prefers the job's seed, then the configuration's, then one derived from the job id.
func jobSeed(task *Task, cfg types.Configuration) int64 {
	if task.job.Seed != 0 {
		return task.job.Seed
	}
	if cfg.Seed != 0 {
		return cfg.Seed
	}
	return utils.SeedFromString(task.job.JobID)
}

func (worker *Worker) train(ctx context.Context, task *Task, prob *svm.Problem, param svm.Parameter, opts svm.Options) (jobResult, error) {
	model, err := svm.Train(ctx, prob, param, opts)
	if err != nil {
		return jobResult{}, err
	}
	var buf bytes.Buffer
	if err = model.Save(&buf); err != nil {
		return jobResult{}, err
	}
	key := modelFileKey(task)
	task.taskLogger.Info().Int("total_sv", model.L).Str("key", key).Msg("Finished training, saving model to s3")
	if err = worker.s3.saveArtifact(ctx, key, buf.Bytes()); err != nil {
		task.taskLogger.Err(err).Msg("Got error while trying to save model")
		return jobResult{}, err
	}
	return jobResult{modelKey: key}, nil
}

func (worker *Worker) crossValidate(ctx context.Context, task *Task, prob *svm.Problem, param svm.Parameter, folds int, opts svm.Options) (jobResult, error) {
	cv, err := svm.CrossValidate(ctx, prob, param, folds, opts)
	if err != nil {
		return jobResult{}, err
	}
	report, err := json.Marshal(cv)
	if err != nil {
		return jobResult{}, err
	}
	key := reportFileKey(task)
	task.taskLogger.Info().
		Int("folds", cv.Folds).
		Float64("mean_fold_score", cv.MeanFoldScore).
		Str("key", key).
		Msg("Finished cross validation, saving report to s3")
	if err = worker.s3.saveArtifact(ctx, key, report); err != nil {
		task.taskLogger.Err(err).Msg("Got error while trying to save report")
		return jobResult{}, err
	}
	result := jobResult{reportKey: key}
	if param.IsClassification() || param.SvmType == svm.OneClass {
		accuracy := cv.Accuracy
		result.accuracy = &accuracy
	}
	return result, nil
}
