// Package redis reads module jobs from, and pushes them onto, a Redis list.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"attackgraph/pkg/models"
)

// Config configures the Redis job queue.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	BlockTimeout time.Duration
}

func (cfg *Config) applyDefaults() error {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return fmt.Errorf("redis key is required")
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	return nil
}

func (cfg Config) client() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Consumer pops jobs from the head of the list.
type Consumer struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
}

// NewConsumer creates a Redis consumer for list-based queues.
func NewConsumer(cfg Config) (*Consumer, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &Consumer{
		client:       cfg.client(),
		key:          cfg.Key,
		blockTimeout: cfg.BlockTimeout,
	}, nil
}

// Pop pops one message from the list. It returns nil, nil when the block
// timeout elapses with the list empty.
func (c *Consumer) Pop(ctx context.Context) ([]byte, error) {
	res, err := c.client.BLPop(ctx, c.blockTimeout, c.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}

// PopJob pops and decodes one job. A nil job with a nil error means the
// queue was empty.
func (c *Consumer) PopJob(ctx context.Context) (*models.JobRequest, error) {
	msg, err := c.Pop(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	return DecodeJob(msg)
}

// Close closes the consumer.
func (c *Consumer) Close() error {
	return c.client.Close()
}

// DecodeJob parses one queue message.
func DecodeJob(msg []byte) (*models.JobRequest, error) {
	var job models.JobRequest
	if err := json.Unmarshal(msg, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	if job.Module == "" || job.Target.Host == "" {
		return nil, fmt.Errorf("decode job: module and target host are required")
	}
	return &job, nil
}
