package rmq

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"text2phenotype.com/svm/logger"
)

type Config struct {
	Host                    string `envconfig:"MDL_COMN_RMQ_HOST" required:"true"`
	Port                    string `envconfig:"MDL_COMN_RMQ_PORT" required:"true"`
	Username                string `envconfig:"MDL_COMN_RMQ_USERNAME" required:"true"`
	Password                string `envconfig:"MDL_COMN_RMQ_PASSWORD" required:"true"`
	Exchange                string `envconfig:"MDL_COMN_RMQ_DEFAULT_EXCHANGE" default:"text2phenotype-default-exchange"`
	MaxParallelRequestCount int    `envconfig:"SVM_MQ_MAX_PARALLEL_REQUESTS" default:"2"`
	TrainingTaskQueue       string `envconfig:"SVM_TRAINING_TASK_QUEUE" required:"true"`
	ResultsQueue            string `envconfig:"SVM_RESULTS_QUEUE" required:"true"`
}

func (config Config) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s", config.Username, config.Password, config.Host, config.Port)
}

// Client consumes training jobs on one connection and publishes results on another.
type Client struct {
	Deliveries     <-chan amqp.Delivery
	ReqChanErrors  <-chan *amqp.Error
	RespChanErrors <-chan *amqp.Error
	config         Config
	reqConn        *amqp.Connection
	respConn       *amqp.Connection
	respChannel    *amqp.Channel
	rmqLogger      *zerolog.Logger
}

func NewClient() (*Client, error) {
	rmqLogger := logger.NewLogger("RMQ client")
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		rmqLogger.Error().Err(err).Msg("Could not read env config")
		return nil, err
	}

	respConn, respChannel, err := setup(config.URL())
	if err != nil {
		return nil, fmt.Errorf("failed connection: %w", err)
	}
	reqConn, reqChannel, err := setup(config.URL())
	if err != nil {
		_ = respConn.Close()
		return nil, fmt.Errorf("failed connection: %w", err)
	}

	deliveries, err := consume(reqChannel, config)
	if err != nil {
		_ = respConn.Close()
		_ = reqConn.Close()
		return nil, err
	}
	rmqLogger.Info().
		Str("queue", config.TrainingTaskQueue).
		Int("prefetch", config.MaxParallelRequestCount).
		Msg("Consuming training jobs")

	return &Client{
		Deliveries:     deliveries,
		ReqChanErrors:  reqChannel.NotifyClose(make(chan *amqp.Error, 1)),
		RespChanErrors: respChannel.NotifyClose(make(chan *amqp.Error, 1)),
		config:         config,
		reqConn:        reqConn,
		respConn:       respConn,
		respChannel:    respChannel,
		rmqLogger:      &rmqLogger,
	}, nil
}

func consume(ch *amqp.Channel, config Config) (<-chan amqp.Delivery, error) {
	q, err := ch.QueueDeclarePassive(
		config.TrainingTaskQueue, // name
		true,                     // durable
		false,                    // delete when unused
		false,                    // exclusive
		false,                    // no-wait
		nil,                      // arguments
	)
	if err != nil {
		return nil, err
	}
	if err := ch.QueueBind(q.Name, q.Name, config.Exchange, false, nil); err != nil {
		return nil, err
	}
	if err := ch.Qos(config.MaxParallelRequestCount, 0, false); err != nil {
		return nil, fmt.Errorf("qos: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume deliveries: %w", err)
	}
	return deliveries, nil
}

func (c *Client) PublishResult(msg amqp.Publishing) error {
	return c.respChannel.Publish(
		c.config.Exchange,
		c.config.ResultsQueue,
		false,
		false,
		msg)
}

func (c *Client) Close() {
	_ = c.reqConn.Close()
	_ = c.respConn.Close()
}

func setup(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}
