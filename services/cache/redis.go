package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the Store interface with a Redis instance. Backend
// failures are logged and reported as misses so a dead Redis never takes the
// resolver down with it.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis at addr. The connection is verified with a
// short ping; a failed ping is logged but not fatal since the store degrades
// to miss/no-op behaviour anyway.
func NewRedisStore(addr string, db int) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[cache] redis ping failed for %s: %v (operating in always-fetch mode)", addr, err)
	} else {
		log.Printf("[cache] connected to redis at %s (db %d)", addr, db)
	}

	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[cache] redis get failed for %s: %v", key, err)
		}
		return nil, false
	}
	return val, true
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Printf("[cache] redis set failed for %s: %v", key, err)
	}
}

// Flush walks the namespace with SCAN and deletes every matching key.
func (s *RedisStore) Flush(ctx context.Context) (int, error) {
	var removed int
	iter := s.client.Scan(ctx, 0, Namespace+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, err
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	return removed, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
