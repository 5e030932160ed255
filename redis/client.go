package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	jsonpatch "github.com/evanphx/json-patch"
	"github.com/go-redis/redis/v8"
	"github.com/kelseyhightower/envconfig"
)

type DB int
type ReleaseLock func() error

var ErrNotFound = errors.New("document not found")

type Client struct {
	client         redis.UniversalClient
	lockExpiration time.Duration
}

type Config struct {
	LockExpirationSeconds   int     `envconfig:"MDL_COMN_REDIS_LOCK_EXPIRATION" default:"3"`
	Host                    string  `envconfig:"MDL_COMN_REDIS_HOST" required:"true"`
	Port                    string  `envconfig:"MDL_COMN_REDIS_PORT" required:"true"`
	HASentinelPort          string  `envconfig:"MDL_COMN_REDIS_HA_SENTINEL_PORT" default:"26379"`
	HASentinelMasterName    string  `envconfig:"MDL_COMN_REDIS_HA_MASTER_NAME" default:"mymaster"`
	Password                string  `envconfig:"MDL_COMN_REDIS_AUTH_PASSWORD" default:"0"`
	AuthRequired            bool    `envconfig:"MDL_COMN_REDIS_AUTH_REQUIRED" default:"false"`
	HAMode                  bool    `envconfig:"MDL_COMN_REDIS_HA_MODE" default:"false"`
	HASentinelSocketTimeout float32 `envconfig:"MDL_COMN_REDIS_SOCKET_TIMEOUT" default:"0.5"`
}

func NewClient(db DB) (Client, error) {
	cfg, err := readEnvironment()
	if err != nil {
		return Client{}, err
	}
	var client redis.UniversalClient
	if cfg.HAMode {
		client = CreateClusterClient(cfg, db)
	} else {
		client = CreateClient(cfg, db)
	}
	return NewClientFrom(client, time.Duration(cfg.LockExpirationSeconds)*time.Second), nil
}

// NewClientFrom wraps an already configured connection.
func NewClientFrom(client redis.UniversalClient, lockExpiration time.Duration) Client {
	return Client{client: client, lockExpiration: lockExpiration}
}

func CreateClusterClient(cfg *Config, db DB) *redis.ClusterClient {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.HASentinelPort)
	timeout := time.Duration(float64(cfg.HASentinelSocketTimeout) * float64(time.Second))
	options := redis.FailoverOptions{
		SentinelAddrs: []string{addr},
		ReadTimeout:   timeout,
		WriteTimeout:  timeout,
		MaxRetries:    6,
		DB:            int(db),
		MasterName:    cfg.HASentinelMasterName,
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewFailoverClusterClient(&options)
}

func CreateClient(cfg *Config, db DB) *redis.Client {
	options := redis.Options{
		Addr:       fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		MaxRetries: 6,
		DB:         int(db),
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewClient(&options)
}

func (client *Client) getRaw(ctx context.Context, redisKey string) ([]byte, error) {
	b, err := client.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, redisKey)
	}
	return b, err
}

// GetDocument decodes the JSON document stored at redisKey into doc.
func (client *Client) GetDocument(ctx context.Context, redisKey string, doc interface{}) error {
	b, err := client.getRaw(ctx, redisKey)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, doc)
}

// UpdateDocument loads doc under a lock, lets update modify it and writes back only
// the fields update changed. Fields doc does not declare are kept as stored.
func (client *Client) UpdateDocument(ctx context.Context, redisKey string, doc interface{}, update func() error) (err error) {
	releaseLock, err := client.Lock(ctx, redisKey)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := releaseLock(); err == nil {
			err = releaseErr
		}
	}()

	raw, err := client.getRaw(ctx, redisKey)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(raw, doc); err != nil {
		return err
	}
	before, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err = update(); err != nil {
		return err
	}
	after, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	merged, err := MergeChanges(raw, before, after)
	if err != nil {
		return err
	}
	return client.client.Set(ctx, redisKey, merged, 0).Err()
}

// MergeChanges applies the difference between before and after onto stored.
func MergeChanges(stored, before, after []byte) ([]byte, error) {
	patch, err := jsonpatch.CreateMergePatch(before, after)
	if err != nil {
		return nil, err
	}
	return jsonpatch.MergePatch(stored, patch)
}

func (client *Client) Lock(ctx context.Context, redisKey string) (ReleaseLock, error) {
	lockCl := redislock.New(client.client)
	strategy := redislock.LimitRetry(redislock.LinearBackoff(time.Second), 20)
	lockKey := fmt.Sprintf("lock:%s", redisKey)
	lock, err := lockCl.Obtain(ctx, lockKey, client.lockExpiration, &redislock.Options{RetryStrategy: strategy})
	if err != nil {
		return nil, err
	}
	return func() error {
		return lock.Release(context.Background())
	}, nil
}

func (client *Client) SaveDocument(ctx context.Context, redisKey string, doc interface{}) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return client.client.Set(ctx, redisKey, b, 0).Err()
}

func (client *Client) Close() error {
	return client.client.Close()
}

func readEnvironment() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
