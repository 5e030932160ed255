package tasks

import (
	"context"

	"text2phenotype.com/svm/redis"
)

const JobsDB redis.DB = 0

type TaskStatus string

const (
	TaskStatusSubmitted        TaskStatus = "submitted"
	TaskStatusStarted          TaskStatus = "started"
	TaskStatusFailed           TaskStatus = "failed"
	TaskStatusCompletedSuccess TaskStatus = "completed - success"
	TaskStatusCompletedFailure TaskStatus = "completed - failure"
	TaskStatusCanceled         TaskStatus = "canceled"
)

func (s TaskStatus) Complete() bool {
	return s == TaskStatusCompletedSuccess || s == TaskStatusCompletedFailure || s == TaskStatusCanceled
}

func (s TaskStatus) Submitted() bool {
	return s == TaskStatusSubmitted || s == TaskStatusStarted
}

// TrainingJob is the job document written by the submitter. The worker only
// ever changes Status.
type TrainingJob struct {
	JobID        string            `json:"job_id"`
	DatasetKey   string            `json:"dataset_key"`
	ConfigName   string            `json:"config_name"`
	Parameters   map[string]string `json:"parameters"`
	Folds        int               `json:"folds"`
	Seed         int64             `json:"seed"`
	UserCanceled bool              `json:"user_canceled"`
	Status       JobStatus         `json:"status"`
}

type JobStatus struct {
	Status        TaskStatus `json:"status"`
	Attempts      int        `json:"attempts"`
	StartedAt     *string    `json:"started_at"`
	CompletedAt   *string    `json:"completed_at"`
	ModelKey      string     `json:"model_key"`
	ReportKey     string     `json:"report_key"`
	Accuracy      *float64   `json:"accuracy"`
	ErrorMessages []string   `json:"error_messages"`
}

type JobTasks struct {
	client redis.Client
}

func (tasks JobTasks) Get(ctx context.Context, redisKey string) (*TrainingJob, error) {
	var job TrainingJob
	if err := tasks.client.GetDocument(ctx, redisKey, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (tasks JobTasks) Create(ctx context.Context, redisKey string, job *TrainingJob) error {
	if job.Status.Status == "" {
		job.Status.Status = TaskStatusSubmitted
	}
	return tasks.client.SaveDocument(ctx, redisKey, job)
}

func (tasks JobTasks) Update(ctx context.Context, redisKey string, updateFunc func(job *TrainingJob)) error {
	var job TrainingJob
	return tasks.client.UpdateDocument(ctx, redisKey, &job, func() error {
		updateFunc(&job)
		return nil
	})
}
