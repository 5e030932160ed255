package tasks

import (
	"text2phenotype.com/svm/redis"
)

type Client struct {
	Jobs JobTasks
}

// NewClient is a preferred way for working with training jobs
func NewClient() (Client, error) {
	jobsRedisClient, err := redis.NewClient(JobsDB)
	if err != nil {
		return Client{}, err
	}
	return Client{
		Jobs: JobTasks{client: jobsRedisClient},
	}, nil
}

func (client *Client) Close() {
	_ = client.Jobs.client.Close()
}
