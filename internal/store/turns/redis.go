package turns

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/consultedge/emi-reminder-ai/internal/models"
)

// KeyPrefix namespaces turn lists in Redis.
const KeyPrefix = "emi:conversation:turns:"

// DefaultTTL is how long a session's turns are kept after the last append.
const DefaultTTL = 24 * time.Hour

// listClient is the part of *redis.Client the store uses.
type listClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Redis stores turns as a JSON list per session.
type Redis struct {
	client listClient
	closer func() error
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := newRedis(rdb, cfg.TTL)
	s.closer = rdb.Close
	return s, nil
}

func newRedis(client listClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// Append pushes a turn onto the session list and refreshes its expiry.
func (s *Redis) Append(ctx context.Context, ev models.TurnEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	key := KeyPrefix + ev.SessionID
	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}
	return nil
}

// List returns the turns of a session in order.
func (s *Redis) List(ctx context.Context, sessionID string) ([]models.TurnEvent, error) {
	key := KeyPrefix + sessionID
	raw, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}

	out := make([]models.TurnEvent, 0, len(raw))
	for _, item := range raw {
		var ev models.TurnEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// Close closes the Redis connection.
func (s *Redis) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
