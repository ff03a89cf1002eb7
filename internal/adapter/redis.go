package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by RedisClient.Get when the key does not exist
var ErrCacheMiss = errors.New("cache miss")

// RedisClient is the subset of Redis used by the snapshot cache and the rate limiter
//
//go:generate mockgen -source=redis.go -destination=../mocks/redis.go -package=mocks -mock_names=RedisClient=MockRedisClient,RedisRateLimiter=MockRedisRateLimiter
type RedisClient interface {
	// Ping checks if Redis is reachable
	Ping(ctx context.Context) error

	// Get returns the value stored at key or ErrCacheMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key; a zero ttl keeps the key forever
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes the keys
	Del(ctx context.Context, keys ...string) error

	// NewRateLimiter returns a GCRA limiter sharing this connection
	NewRateLimiter() RedisRateLimiter

	// Close closes the connection pool
	Close() error
}

type redisClient struct {
	client *redis.Client
}

// NewRedisClient connects lazily to the Redis server at addr
func NewRedisClient(addr, password string, db int) RedisClient {
	return &redisClient{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (r *redisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisClient) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (r *redisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisClient) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisClient) NewRateLimiter() RedisRateLimiter {
	return &redisRateLimiter{limiter: redis_rate.NewLimiter(r.client)}
}

func (r *redisClient) Close() error {
	return r.client.Close()
}

// RedisRateLimiter is a distributed limiter keyed by caller
type RedisRateLimiter interface {
	// Allow consumes one token for key under limit
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

type redisRateLimiter struct {
	limiter *redis_rate.Limiter
}

func (r *redisRateLimiter) Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	return r.limiter.Allow(ctx, key, limit)
}
