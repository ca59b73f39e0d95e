package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStreamConfig configures a RedisStreamPublisher.
type RedisStreamConfig struct {
	Addr     string
	Password string
	Stream   string
	// MaxLen caps the stream length (approximately). Defaults to 10000.
	MaxLen int64
}

// RedisStreamPublisher appends events to a Redis stream so consumer groups
// can read them with XREADGROUP.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisStreamPublisher(cfg RedisStreamConfig) (*RedisStreamPublisher, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("events: redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("events: stream required")
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisStreamPublisher{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream: stream,
		maxLen: maxLen,
	}, nil
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, e Event) error {
	body, err := encode(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id":   e.ID,
			"type":       e.Type,
			"subject_id": e.SubjectID,
			"body":       string(body),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *RedisStreamPublisher) Close() error {
	return p.client.Close()
}
