package tasks

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStatus(t *testing.T) {
	for _, s := range []TaskStatus{TaskStatusCompletedSuccess, TaskStatusCompletedFailure, TaskStatusCanceled} {
		assert.True(t, s.Complete(), s)
		assert.False(t, s.Submitted(), s)
	}
	for _, s := range []TaskStatus{TaskStatusSubmitted, TaskStatusStarted} {
		assert.False(t, s.Complete(), s)
		assert.True(t, s.Submitted(), s)
	}
	assert.False(t, TaskStatusFailed.Complete())
}

func TestTrainingJobDocument(t *testing.T) {
	doc := `{
		"job_id": "job-7",
		"dataset_key": "datasets/iris.txt",
		"config_name": "rbf",
		"parameters": {"c": "2"},
		"folds": 4,
		"status": {"status": "submitted", "attempts": 1, "started_at": null}
	}`
	var job TrainingJob
	require.NoError(t, json.Unmarshal([]byte(doc), &job))
	assert.Equal(t, "job-7", job.JobID)
	assert.Equal(t, map[string]string{"c": "2"}, job.Parameters)
	assert.Equal(t, TaskStatusSubmitted, job.Status.Status)
	assert.Nil(t, job.Status.StartedAt)
	assert.Nil(t, job.Status.Accuracy)
}
