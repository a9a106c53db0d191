package sheetstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "sheetsync:doc:"
	connectionTimeout  = 5 * time.Second

	fieldHTML      = "html"
	fieldUpdatedAt = "updated_at"
	fieldUpdatedBy = "updated_by"
)

// RedisConfig holds Redis connection settings for the sandbox store.
type RedisConfig struct {
	Address  string `env:"SHEETSYNC_REDIS_ADDRESS"  yaml:"address"`
	Password string `env:"SHEETSYNC_REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"SHEETSYNC_REDIS_DB"       yaml:"db"`
	Prefix   string `env:"SHEETSYNC_REDIS_PREFIX"   yaml:"prefix"`
}

// ErrEmptyAddress is returned when the Redis address is not configured.
var ErrEmptyAddress = errors.New("sheetstore: redis address is required")

// RedisStore keeps each document in a Redis hash.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sheetstore: redis ping failed: %w", err)
	}
	return NewRedisStoreWithClient(client, cfg.Prefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Document, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("sheetstore: redis get %q: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return &Document{
		Key:       key,
		HTML:      fields[fieldHTML],
		UpdatedAt: fields[fieldUpdatedAt],
		UpdatedBy: fields[fieldUpdatedBy],
	}, nil
}

func (s *RedisStore) Put(ctx context.Context, doc Document) error {
	if strings.TrimSpace(doc.Key) == "" {
		return ErrKeyRequired
	}
	err := s.client.HSet(ctx, s.prefix+doc.Key,
		fieldHTML, doc.HTML,
		fieldUpdatedAt, doc.UpdatedAt,
		fieldUpdatedBy, doc.UpdatedBy,
	).Err()
	if err != nil {
		return fmt.Errorf("sheetstore: redis put %q: %w", doc.Key, err)
	}
	return nil
}

func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("sheetstore: redis scan: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
