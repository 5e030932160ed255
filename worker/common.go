package worker

import (
	"path"
	"time"
)

const (
	WorkTypeTrain         = "train"
	WorkTypeCrossValidate = "cross_validate"

	senderName = "svm"
)

func modelFileKey(task *Task) string {
	return path.Join("models", task.job.JobID, "model.svm")
}

func reportFileKey(task *Task) string {
	return path.Join("models", task.job.JobID, "cross_validation.json")
}

const RFC3339Micro = "2006-01-02T15:04:05.000000-07:00"

func getFormattedNow() *string {
	now := time.Now().UTC().Format(RFC3339Micro)
	return &now
}
