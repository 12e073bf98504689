package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spherical-ai/spherical/libs/deckdoc/internal/observability"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	PoolSize int
	Prefix   string
}

// Redis publishes snapshots on one pub/sub channel per job.
type Redis struct {
	client *redis.Client
	prefix string
	logger *observability.Logger
}

// NewRedis connects and pings the server.
func NewRedis(cfg RedisConfig, logger *observability.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "deckdoc:"
	}

	return &Redis{
		client: client,
		prefix: prefix,
		logger: observability.OrNop(logger).WithOperation("broadcast"),
	}, nil
}

// Channel is the pub/sub channel for jobID.
func (r *Redis) Channel(jobID string) string {
	return r.prefix + "job:" + jobID
}

// Publish sends snap as JSON on the job's channel.
func (r *Redis) Publish(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := r.client.Publish(ctx, r.Channel(snap.JobID), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe delivers snapshots for jobID until the returned func is called
// or ctx ends. Undecodable messages are skipped.
func (r *Redis) Subscribe(ctx context.Context, jobID string) (<-chan Snapshot, func(), error) {
	sub := r.client.Subscribe(ctx, r.Channel(jobID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	ch := make(chan Snapshot, 100)
	done := make(chan struct{})
	msgs := sub.Channel()

	go func() {
		defer close(ch)
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var snap Snapshot
				if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
					r.logger.Warn().Str("channel", msg.Channel).Err(err).Msg("Skipping malformed snapshot")
					continue
				}
				select {
				case ch <- snap:
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}

	return ch, unsubscribe, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
