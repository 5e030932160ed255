package worker

import (
	"context"

	"text2phenotype.com/svm/s3client"
)

type s3Transactions interface {
	getDataset(ctx context.Context, task *Task) ([]byte, error)
	saveArtifact(ctx context.Context, key string, data []byte) error
	close()
}

type s3ClientWrapper struct {
	s3Client *s3client.Client
}

func (wrapper *s3ClientWrapper) close() {
	wrapper.s3Client.Close()
}

func (wrapper *s3ClientWrapper) getDataset(ctx context.Context, task *Task) ([]byte, error) {
	return wrapper.s3Client.Download(ctx, task.job.DatasetKey)
}

func (wrapper *s3ClientWrapper) saveArtifact(ctx context.Context, key string, data []byte) error {
	return wrapper.s3Client.Upload(ctx, key, data)
}
