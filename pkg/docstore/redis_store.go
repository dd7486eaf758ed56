package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

const defaultRedisKey = "memreg:document"

// RedisStore keeps the registry document under a single redis key.
type RedisStore struct {
	client *redis.Client
	key    string
	mu     sync.Mutex
}

// NewRedisStore connects to the redis URL and verifies the connection.
func NewRedisStore(redisURL, key string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStoreWithClient(client, key), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Load reads and decodes the document.
func (s *RedisStore) Load(ctx context.Context) (*registry.Document, error) {
	data, err := s.Raw(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := registry.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("document store: failed to parse key %s: %w", s.key, err)
	}
	return doc, nil
}

// Raw returns the stored bytes, or nothing if the key does not exist.
func (s *RedisStore) Raw(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("document store: failed to read key %s: %w", s.key, err)
	}
	return data, nil
}

// Save replaces the value of the key with the encoded document.
func (s *RedisStore) Save(ctx context.Context, doc *registry.Document) error {
	data, err := registry.Encode(doc)
	if err != nil {
		return fmt.Errorf("document store: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("document store: failed to write key %s: %w", s.key, err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
