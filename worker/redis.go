package worker

import (
	"context"
	"fmt"

	"text2phenotype.com/svm/tasks"
)

type redisTransactions interface {
	getJob(ctx context.Context, redisKey string) (*tasks.TrainingJob, error)
	onTaskStarted(ctx context.Context, task *Task) error
	onTaskCancelled(ctx context.Context, task *Task, errorMessages ...string) error
	onTaskExceededRetries(ctx context.Context, task *Task, maxRetries int) error
	onTaskFailedWithError(ctx context.Context, task *Task, err error) error
	onTaskComplete(ctx context.Context, task *Task, result jobResult) error
	close()
}

type redisClientWrapper struct {
	tasksClient *tasks.Client
}

func (wrapper *redisClientWrapper) close() {
	wrapper.tasksClient.Close()
}

func (wrapper *redisClientWrapper) getJob(ctx context.Context, redisKey string) (*tasks.TrainingJob, error) {
	return wrapper.tasksClient.Jobs.Get(ctx, redisKey)
}

func (wrapper *redisClientWrapper) onTaskStarted(ctx context.Context, task *Task) error {
	return wrapper.tasksClient.Jobs.Update(ctx, task.redisKey, func(job *tasks.TrainingJob) {
		job.Status.Status = tasks.TaskStatusStarted
		job.Status.Attempts += 1
		job.Status.StartedAt = getFormattedNow()
		job.Status.CompletedAt = nil
	})
}

func (wrapper *redisClientWrapper) onTaskCancelled(ctx context.Context, task *Task, errorMessages ...string) error {
	return wrapper.tasksClient.Jobs.Update(ctx, task.redisKey, func(job *tasks.TrainingJob) {
		job.Status.Status = tasks.TaskStatusCanceled
		job.Status.CompletedAt = getFormattedNow()
		job.Status.ErrorMessages = append(job.Status.ErrorMessages, errorMessages...)
	})
}

func (wrapper *redisClientWrapper) onTaskExceededRetries(ctx context.Context, task *Task, maxRetries int) error {
	return wrapper.tasksClient.Jobs.Update(ctx, task.redisKey, func(job *tasks.TrainingJob) {
		job.Status.Status = tasks.TaskStatusCompletedFailure
		job.Status.CompletedAt = getFormattedNow()
		job.Status.ErrorMessages = append(
			job.Status.ErrorMessages,
			fmt.Sprintf(
				"Job has exceeded retries. (Attempts: %d, max retries: %d)",
				job.Status.Attempts,
				maxRetries,
			),
		)
	})
}

func (wrapper *redisClientWrapper) onTaskFailedWithError(ctx context.Context, task *Task, err error) error {
	return wrapper.tasksClient.Jobs.Update(ctx, task.redisKey, func(job *tasks.TrainingJob) {
		job.Status.Status = tasks.TaskStatusFailed
		job.Status.CompletedAt = getFormattedNow()
		job.Status.ErrorMessages = append(job.Status.ErrorMessages, err.Error())
	})
}

func (wrapper *redisClientWrapper) onTaskComplete(ctx context.Context, task *Task, result jobResult) error {
	return wrapper.tasksClient.Jobs.Update(ctx, task.redisKey, func(job *tasks.TrainingJob) {
		if !job.Status.Status.Complete() {
			job.Status.Status = tasks.TaskStatusCompletedSuccess
		}
		job.Status.CompletedAt = getFormattedNow()
		if result.modelKey != "" {
			job.Status.ModelKey = result.modelKey
		}
		if result.reportKey != "" {
			job.Status.ReportKey = result.reportKey
		}
		if result.accuracy != nil {
			job.Status.Accuracy = result.accuracy
		}
	})
}
