package worker

import (
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"text2phenotype.com/svm/rmq"
	"text2phenotype.com/svm/tasks"
)

type rmqTransactions interface {
	notifyResults(task *Task, status tasks.TaskStatus) error
	acknowledgeDelivery(delivery *amqp.Delivery) error
	rejectDelivery(delivery *amqp.Delivery, taskLogger *zerolog.Logger)
	getDeliveriesCh() <-chan amqp.Delivery
	getReqChanErrorsCh() <-chan *amqp.Error
	getRespChanErrorsCh() <-chan *amqp.Error
	close()
}

type rmqClientWrapper struct {
	rmqClient *rmq.Client
}

func (wrapper *rmqClientWrapper) close() {
	wrapper.rmqClient.Close()
}

func (wrapper *rmqClientWrapper) getDeliveriesCh() <-chan amqp.Delivery {
	return wrapper.rmqClient.Deliveries
}

func (wrapper *rmqClientWrapper) getReqChanErrorsCh() <-chan *amqp.Error {
	return wrapper.rmqClient.ReqChanErrors
}

func (wrapper *rmqClientWrapper) getRespChanErrorsCh() <-chan *amqp.Error {
	return wrapper.rmqClient.RespChanErrors
}

func (wrapper *rmqClientWrapper) notifyResults(task *Task, status tasks.TaskStatus) error {
	b, err := json.Marshal(resultMessage(task, status))
	if err != nil {
		return err
	}
	return wrapper.rmqClient.PublishResult(
		amqp.Publishing{
			ContentType: "application/json",
			Body:        b,
		},
	)
}

func (wrapper *rmqClientWrapper) acknowledgeDelivery(delivery *amqp.Delivery) error {
	return delivery.Ack(false)
}

func (wrapper *rmqClientWrapper) rejectDelivery(delivery *amqp.Delivery, taskLogger *zerolog.Logger) {
	if delivery.Redelivered {
		taskLogger.Info().Msg("Rejecting delivery as it already has been redelivered")
		if err := delivery.Reject(false); err != nil {
			taskLogger.Err(err).Msg("Failed to reject delivery")
		}
		return
	}
	taskLogger.Info().Msg("Requeuing delivery as it has not been redelivered yet")
	if err := delivery.Reject(true); err != nil {
		taskLogger.Err(err).Msg("Failed to requeue delivery")
	}
}
