package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore — счётчики в Redis, общие для всех инстансов сервиса.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore создаёт RedisStore поверх готового клиента.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromURL разбирает redis://... и проверяет соединение.
func NewRedisStoreFromURL(ctx context.Context, url string) (*RedisStore, error) {
	const op = "ratelimit.NewRedisStoreFromURL"

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisStore{client: client}, nil
}

// Incr выполняет INCR и EXPIRE NX в одной транзакции MULTI/EXEC:
// счётчик без TTL не остаётся, даже если ключ создан сбойным вызовом.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	const op = "ratelimit.RedisStore.Incr"

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return incr.Val(), nil
}

// Ping проверяет доступность Redis (для /healthz).
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close закрывает клиент.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
