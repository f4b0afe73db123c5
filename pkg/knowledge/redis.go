package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is used when a redis source does not name a key.
const DefaultRedisKey = "ghbridge:knowledge"

// RedisSource reads a JSON knowledge document stored under a single key.
// It lets several bridge instances share one knowledge base.
type RedisSource struct {
	client *redis.Client
	key    string
}

func NewRedisSource(client *redis.Client, key string) *RedisSource {
	return &RedisSource{client: client, key: key}
}

func (s *RedisSource) Name() string {
	return fmt.Sprintf("redis://%s/%s", s.client.Options().Addr, s.key)
}

func (s *RedisSource) Read(ctx context.Context) ([]byte, Format, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, "", ErrSourceNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to GET %s: %w", s.key, err)
	}
	return data, FormatJSON, nil
}

// Publish stores kb under the source key, replacing the previous document.
func (s *RedisSource) Publish(ctx context.Context, kb *KnowledgeBase) error {
	data, err := kb.Marshal(FormatJSON)
	if err != nil {
		return fmt.Errorf("failed to marshal knowledge base: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to SET %s: %w", s.key, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisSource) Close() error {
	return s.client.Close()
}
