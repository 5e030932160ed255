package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"text2phenotype.com/svm/tasks"
)

type Message struct {
	WorkType string `json:"work_type"`
	RedisKey string `json:"redis_key"`
	Sender   string `json:"sender,omitempty"`
	Status   string `json:"status,omitempty"`
}

type Task struct {
	delivery   *amqp.Delivery
	job        *tasks.TrainingJob
	message    *Message
	redisKey   string
	taskLogger *zerolog.Logger
}

func resultMessage(task *Task, status tasks.TaskStatus) Message {
	return Message{
		WorkType: task.message.WorkType,
		RedisKey: task.redisKey,
		Sender:   senderName,
		Status:   string(status),
	}
}

func (worker *Worker) processMessage(delivery *amqp.Delivery) {
	ctx := context.Background()
	rejectLogger := worker.workerLogger.With().Str("message_id", delivery.MessageId).Logger()
	task, err := worker.createTask(ctx, delivery)
	if err != nil {
		rejectLogger.Err(err).
			Str("body", string(delivery.Body)).
			Msg("Failed to create task for delivery")
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	status, err := worker.processTask(ctx, task)
	if err != nil {
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.rmq.notifyResults(task, status); err != nil {
		task.taskLogger.Err(err).Msg("Got error while sending message to results queue")
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.rmq.acknowledgeDelivery(delivery); err != nil {
		task.taskLogger.Err(err).Msg("Failed to acknowledge delivery")
	}
	task.taskLogger.Info().Str("status", string(status)).Msg("Finished processing RMQ message")
}

func (worker *Worker) createTask(ctx context.Context, delivery *amqp.Delivery) (*Task, error) {
	var message Message
	if err := json.Unmarshal(delivery.Body, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message, got error %w", err)
	}
	if message.WorkType != WorkTypeTrain && message.WorkType != WorkTypeCrossValidate {
		return nil, fmt.Errorf("unknown work type %q", message.WorkType)
	}
	job, err := worker.redis.getJob(ctx, message.RedisKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query training job for message, got error %w", err)
	}
	taskLogger := worker.workerLogger.With().
		Str("tid", message.RedisKey).
		Str("job_id", job.JobID).
		Str("work_type", message.WorkType).
		Logger()
	return &Task{
		delivery:   delivery,
		job:        job,
		redisKey:   message.RedisKey,
		message:    &message,
		taskLogger: &taskLogger,
	}, nil
}

// processTask returns the job status to report. An error means the delivery should be rejected.
func (worker *Worker) processTask(ctx context.Context, task *Task) (tasks.TaskStatus, error) {
	status, shouldPerform, err := worker.shouldPerformTask(ctx, task)
	if err != nil {
		task.taskLogger.Err(err).
			Msg("Got error while trying to decide whether to run task")
		return status, err
	}
	if !shouldPerform {
		return status, nil
	}
	if err = worker.redis.onTaskStarted(ctx, task); err != nil {
		task.taskLogger.Err(err).Msg("Failed to update job status")
		return status, fmt.Errorf("failed to update job status: %w", err)
	}
	result, err := worker.runJob(ctx, task)
	if err != nil {
		task.taskLogger.Err(err).Msg("Got error while running job")
		if err = worker.redis.onTaskFailedWithError(ctx, task, err); err != nil {
			return tasks.TaskStatusFailed, err
		}
		return tasks.TaskStatusFailed, nil
	}
	task.taskLogger.Info().Msg("Saved results, marking job as complete")
	if err = worker.redis.onTaskComplete(ctx, task, result); err != nil {
		task.taskLogger.Err(err).Msg("Got error while trying to mark job as complete")
		return status, err
	}
	return tasks.TaskStatusCompletedSuccess, nil
}

func (worker *Worker) shouldPerformTask(ctx context.Context, task *Task) (tasks.TaskStatus, bool, error) {
	status := task.job.Status
	taskLogger := task.taskLogger

	if status.Status.Complete() {
		taskLogger.Info().Msg("Job is already done. (might indicate issue acking message with RMQ). Sending back results.")
		return status.Status, false, nil
	}
	if task.job.UserCanceled {
		taskLogger.Info().Msg("Job was canceled, no need to perform it. Sending back results.")
		err := worker.redis.onTaskCancelled(ctx, task)
		return tasks.TaskStatusCanceled, false, err
	}
	if status.Attempts >= worker.config.TaskMaxRetries {
		taskLogger.Info().Msg("Job has exceeded retries. Sending back results.")
		err := worker.redis.onTaskExceededRetries(ctx, task, worker.config.TaskMaxRetries)
		return tasks.TaskStatusCompletedFailure, false, err
	}
	return status.Status, true, nil
}
