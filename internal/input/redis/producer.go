package redis

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"attackgraph/pkg/models"
)

// Producer appends jobs to the tail of the list.
type Producer struct {
	client *redis.Client
	key    string
}

// NewProducer creates a producer for the queue named by cfg.Key.
func NewProducer(cfg Config) (*Producer, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &Producer{client: cfg.client(), key: cfg.Key}, nil
}

// Push enqueues jobs in order.
func (p *Producer) Push(ctx context.Context, jobs ...models.JobRequest) error {
	if len(jobs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(jobs))
	for _, job := range jobs {
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("encode job: %w", err)
		}
		values = append(values, data)
	}
	if err := p.client.RPush(ctx, p.key, values...).Err(); err != nil {
		return fmt.Errorf("push jobs: %w", err)
	}
	return nil
}

// Len reports the queue depth.
func (p *Producer) Len(ctx context.Context) (int64, error) {
	n, err := p.client.LLen(ctx, p.key).Result()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}

// Close closes the producer.
func (p *Producer) Close() error {
	return p.client.Close()
}
