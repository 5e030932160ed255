package worker

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"text2phenotype.com/svm/tasks"
)

type failingMethod struct {
	fail bool
}

type withValue struct {
	fail          bool
	returnedValue interface{}
}

type redisMock struct {
	config redisMockConfig
	calls  redisMockCalls
	result jobResult
}

type redisMockConfig struct {
	getJob                withValue
	onTaskCancelled       failingMethod
	onTaskStarted         failingMethod
	onTaskExceededRetries failingMethod
	onTaskFailedWithError failingMethod
	onTaskComplete        failingMethod
}

type redisMockCalls struct {
	getJob                bool
	onTaskCancelled       bool
	onTaskStarted         bool
	onTaskExceededRetries bool
	onTaskFailedWithError bool
	onTaskComplete        bool
}

type rmqMock struct {
	config rmqMockConfig
	calls  rmqMockCalls
	status tasks.TaskStatus
}

type rmqMockConfig struct {
	notifyResults       failingMethod
	acknowledgeDelivery failingMethod
}

type rmqMockCalls struct {
	notifyResults       bool
	acknowledgeDelivery bool
	rejectDelivery      bool
}

type s3Mock struct {
	config s3MockConfig
	calls  s3MockCalls
	saved  map[string][]byte
}

type s3MockConfig struct {
	getDataset   withValue
	saveArtifact failingMethod
}

type s3MockCalls struct {
	getDataset   bool
	saveArtifact bool
}

func (mock *s3Mock) close() {}

func (mock *rmqMock) close() {}

func (mock *redisMock) close() {}

func (mock *redisMock) getJob(ctx context.Context, redisKey string) (*tasks.TrainingJob, error) {
	mock.calls.getJob = true
	if mock.config.getJob.fail {
		return nil, errors.New("failed to get training job")
	}
	switch job := mock.config.getJob.returnedValue.(type) {
	case tasks.TrainingJob:
		return &job, nil
	default:
		return &tasks.TrainingJob{JobID: "job-1", DatasetKey: "datasets/job-1.txt"}, nil
	}
}

func (mock *redisMock) onTaskStarted(ctx context.Context, task *Task) error {
	mock.calls.onTaskStarted = true
	if mock.config.onTaskStarted.fail {
		return errors.New("failed to update job on start")
	}
	return nil
}

func (mock *redisMock) onTaskCancelled(ctx context.Context, task *Task, errorMessages ...string) error {
	mock.calls.onTaskCancelled = true
	if mock.config.onTaskCancelled.fail {
		return errors.New("failed to update job on cancel")
	}
	return nil
}

func (mock *redisMock) onTaskExceededRetries(ctx context.Context, task *Task, maxRetries int) error {
	mock.calls.onTaskExceededRetries = true
	if mock.config.onTaskExceededRetries.fail {
		return errors.New("failed to update job on exceeded retries")
	}
	return nil
}

func (mock *redisMock) onTaskFailedWithError(ctx context.Context, task *Task, err error) error {
	mock.calls.onTaskFailedWithError = true
	if mock.config.onTaskFailedWithError.fail {
		return errors.New("failed to update job on fail with error")
	}
	return nil
}

func (mock *redisMock) onTaskComplete(ctx context.Context, task *Task, result jobResult) error {
	mock.calls.onTaskComplete = true
	mock.result = result
	if mock.config.onTaskComplete.fail {
		return errors.New("failed to update job on complete")
	}
	return nil
}

func (mock *rmqMock) rejectDelivery(delivery *amqp.Delivery, taskLogger *zerolog.Logger) {
	mock.calls.rejectDelivery = true
}

func (mock *rmqMock) getDeliveriesCh() <-chan amqp.Delivery {
	return nil
}

func (mock *rmqMock) getReqChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) getRespChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) notifyResults(task *Task, status tasks.TaskStatus) error {
	mock.calls.notifyResults = true
	mock.status = status
	if mock.config.notifyResults.fail {
		return errors.New("failed to publish results")
	}
	return nil
}

func (mock *rmqMock) acknowledgeDelivery(delivery *amqp.Delivery) error {
	mock.calls.acknowledgeDelivery = true
	if mock.config.acknowledgeDelivery.fail {
		return errors.New("failed to acknowledge delivery")
	}
	return nil
}

func (mock *s3Mock) getDataset(ctx context.Context, task *Task) ([]byte, error) {
	mock.calls.getDataset = true
	if mock.config.getDataset.fail {
		return nil, errors.New("mock: failed to load from s3")
	}
	switch data := mock.config.getDataset.returnedValue.(type) {
	case string:
		return []byte(data), nil
	default:
		return []byte(separableDataset), nil
	}
}

func (mock *s3Mock) saveArtifact(ctx context.Context, key string, data []byte) error {
	mock.calls.saveArtifact = true
	if mock.config.saveArtifact.fail {
		return errors.New("failed to upload artifact")
	}
	if mock.saved == nil {
		mock.saved = map[string][]byte{}
	}
	mock.saved[key] = data
	return nil
}
