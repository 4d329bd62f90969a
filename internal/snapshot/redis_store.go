package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a named snapshot does not exist.
var ErrNotFound = errors.New("snapshot not found")

// RedisConfig configures Redis access for named snapshots.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Entry describes one stored snapshot.
type Entry struct {
	Name    string    `json:"name"`
	SavedAt time.Time `json:"saved_at"`
}

// RedisStore keeps named snapshots: one string key per snapshot plus a
// sorted index scored by save time.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore constructs a Redis-backed snapshot store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = "attackgraph:snapshot"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis snapshot store: %w", err)
	}

	return &RedisStore{client: client, prefix: strings.TrimSpace(cfg.KeyPrefix), now: time.Now}, nil
}

// Save stores g under name, replacing any previous snapshot of that name.
func (s *RedisStore) Save(ctx context.Context, name string, g Source) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("snapshot name is required")
	}
	data, err := Marshal(g)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.dataKey(name), data, 0)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(s.now().Unix()), Member: name})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store snapshot %s: %w", name, err)
	}
	return nil
}

// Load replaces g with the named snapshot. g is untouched on any error.
func (s *RedisStore) Load(ctx context.Context, name string, g Target) error {
	data, err := s.client.Get(ctx, s.dataKey(name)).Bytes()
	if err == redis.Nil {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", name, err)
	}
	nodes, edges, err := Unmarshal(data)
	if err != nil {
		return err
	}
	g.Replace(nodes, edges)
	return nil
}

// List returns stored snapshots, newest first.
func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	members, err := s.client.ZRevRangeWithScores(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read snapshot index: %w", err)
	}
	out := make([]Entry, 0, len(members))
	for _, z := range members {
		name, ok := z.Member.(string)
		if !ok || name == "" {
			continue
		}
		out = append(out, Entry{Name: name, SavedAt: time.Unix(int64(z.Score), 0).UTC()})
	}
	return out, nil
}

// Delete removes a named snapshot.
func (s *RedisStore) Delete(ctx context.Context, name string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.dataKey(name))
	pipe.ZRem(ctx, s.indexKey(), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", name, err)
	}
	return nil
}

// Close closes Redis resources.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) dataKey(name string) string {
	return s.prefix + ":data:" + name
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":index"
}
