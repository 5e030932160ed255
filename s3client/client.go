package s3client

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"text2phenotype.com/svm/logger"
)

// Client keeps one live session and swaps it for a fresh one after a failed call.
type Client struct {
	holder     *sessionHolder
	bucketName string
	env        EnvironmentConfig
}

type sessionHolder struct {
	curr      *session.Session
	requestCh <-chan *session.Session
	errorCh   chan<- error
	closeCh   chan<- struct{}
}

var clientLogger = logger.NewLogger("S3Client")
var sdkLogger = logger.NewLogger("S3-SDK")

type EnvironmentConfig struct {
	BucketName  string `envconfig:"MDL_COMN_STORAGE_CONTAINER_NAME" required:"true"`
	T2PEnv      string `envconfig:"T2P_ENV" required:"true"`
	Region      string `envconfig:"MDL_COMN_AWS_REGION_NAME" required:"true"`
	AwsEndpoint string `envconfig:"MDL_COMN_AWS_ENDPOINT_URL" default:""`
	AccessKeyID string `envconfig:"MDL_COMN_AWS_ACCESS_ID" default:""`
	AccessKey   string `envconfig:"MDL_COMN_AWS_ACCESS_KEY" default:""`
}

func New() (*Client, error) {
	var env EnvironmentConfig
	if err := envconfig.Process("", &env); err != nil {
		clientLogger.Error().Caller().Err(err).Msg("Failed to get proper variables from environment")
		return nil, err
	}
	client := Client{
		bucketName: env.BucketName,
		env:        env,
	}
	sessionCh := make(chan *session.Session)
	errorCh := make(chan error)
	closeCh := make(chan struct{}, 1)
	client.holder = &sessionHolder{
		requestCh: sessionCh,
		errorCh:   errorCh,
		closeCh:   closeCh,
	}
	if err := client.acquireNewSession(); err != nil {
		return nil, err
	}
	go keepSessionRefreshed(&client, sessionCh, errorCh, closeCh)
	return &client, nil
}

func (client Client) Upload(ctx context.Context, key string, data []byte) error {
	params := &s3manager.UploadInput{
		Bucket: aws.String(client.bucketName),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	return client.withSession(func(sess *session.Session) error {
		return client.upload(ctx, sess, params)
	})
}

func (client Client) Download(ctx context.Context, key string) ([]byte, error) {
	params := &s3.GetObjectInput{
		Bucket: aws.String(client.bucketName),
		Key:    aws.String(key),
	}
	var data []byte
	err := client.withSession(func(sess *session.Session) error {
		var err error
		data, err = client.download(ctx, sess, params)
		return err
	})
	return data, err
}

func (client Client) Close() {
	client.holder.closeCh <- struct{}{}
}

// withSession retries call once on a refreshed session.
func (client Client) withSession(call func(sess *session.Session) error) error {
	sess, err := client.session()
	if err != nil {
		return err
	}
	err = call(sess)
	if err == nil {
		return nil
	}
	sess, err = client.tryRefreshingSession(err)
	if err != nil {
		return err
	}
	return call(sess)
}

func (client Client) requestLoggers(key string) (zerolog.Logger, zerolog.Logger) {
	return clientLogger.With().Str("key", key).Str("bucket", client.bucketName).Logger(),
		sdkLogger.With().Str("key", key).Str("bucket", client.bucketName).Logger()
}

func (client Client) upload(ctx context.Context, sess *session.Session, params *s3manager.UploadInput) error {
	reqLogger, sdkLog := client.requestLoggers(*params.Key)
	uploader := s3manager.NewUploader(sess.Copy(&aws.Config{Logger: sdkAdapter{sdkLog}}))
	reqLogger.Debug().Msg("Uploading object")
	if _, err := uploader.UploadWithContext(ctx, params); err != nil {
		reqLogger.Error().Err(err).Msg("Failed to upload object")
		return err
	}
	return nil
}

func (client Client) download(ctx context.Context, sess *session.Session, params *s3.GetObjectInput) ([]byte, error) {
	reqLogger, sdkLog := client.requestLoggers(*params.Key)
	downloader := s3manager.NewDownloader(sess.Copy(&aws.Config{Logger: sdkAdapter{sdkLog}}))
	buf := aws.NewWriteAtBuffer([]byte{})

	reqLogger.Debug().Msg("Downloading object")
	size, err := downloader.DownloadWithContext(ctx, buf, params)
	if err != nil {
		reqLogger.Error().Err(err).Msg("Failed to download object")
		return nil, err
	}
	reqLogger.Debug().Int64("bytes", size).Msg("Downloaded object")
	return buf.Bytes(), nil
}

func keepSessionRefreshed(client *Client, sessionCh chan<- *session.Session, errorCh <-chan error, closeCh <-chan struct{}) {
	for {
		select {
		case sessionCh <- client.holder.curr:
			continue
		default:
		}
		select {
		case sessionCh <- client.holder.curr:
		case err := <-errorCh:
			clientLogger.Error().Err(err).Msg("Caught error while using S3 session, trying to refresh it")
			if err = client.acquireNewSession(); err != nil {
				clientLogger.Error().Err(err).Msg("Caught error while refreshing S3 session")
				continue
			}
			clientLogger.Info().Msg("Successfully refreshed session")
		case <-closeCh:
			clientLogger.Info().Msg("Closing client")
			return
		}
	}
}

func (client Client) tryRefreshingSession(err error) (*session.Session, error) {
	var sess *session.Session
	select {
	case client.holder.errorCh <- err:
		sess = <-client.holder.requestCh
	case sess = <-client.holder.requestCh:
	}
	if sess == nil {
		return nil, fmt.Errorf("failed to refresh session after: %w", err)
	}
	return sess, nil
}

func (client Client) session() (*session.Session, error) {
	sess := <-client.holder.requestCh
	if sess == nil {
		return nil, errors.New("could not get session")
	}
	return sess, nil
}

func (client Client) instanceConfig() *aws.Config {
	return aws.NewConfig().
		WithRegion(client.env.Region).
		WithMaxRetries(4).
		WithLogLevel(aws.LogDebug)
}

func (client Client) envConfig() (*aws.Config, error) {
	creds := credentials.NewStaticCredentials(client.env.AccessKeyID, client.env.AccessKey, "")
	if _, err := creds.Get(); err != nil {
		return nil, fmt.Errorf("credentials from environment: %w", err)
	}
	cfg := client.instanceConfig().WithCredentials(creds)
	if client.env.T2PEnv == "dev" && len(client.env.AwsEndpoint) > 0 {
		cfg = cfg.WithEndpoint(client.env.AwsEndpoint).WithS3ForcePathStyle(true)
	}
	return cfg, nil
}

// acquireNewSession tries the instance role first and static credentials second.
func (client *Client) acquireNewSession() error {
	sess, err := verifiedSession(client.instanceConfig())
	if err == nil {
		client.holder.curr = sess
		clientLogger.Info().Msg("S3 session successfully initialized using EC2")
		return nil
	}
	clientLogger.Info().Err(err).Msg("Could not initialize S3 session using EC2, trying env credentials")

	cfg, err := client.envConfig()
	if err == nil {
		sess, err = verifiedSession(cfg)
	}
	if err != nil {
		client.holder.curr = nil
		clientLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return errors.New("could not initialize S3 session")
	}
	client.holder.curr = sess
	clientLogger.Info().Msg("S3 session successfully initialized using env credentials")
	return nil
}

func verifiedSession(cfg *aws.Config) (*session.Session, error) {
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err != nil {
		return nil, err
	}
	return sess, nil
}

type sdkAdapter struct {
	log zerolog.Logger
}

func (a sdkAdapter) Log(v ...interface{}) {
	a.log.Debug().Msg(fmt.Sprint(v...))
}
