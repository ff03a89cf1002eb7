package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/feral-file/ff-state-reducer/internal/adapter"
	"github.com/feral-file/ff-state-reducer/internal/config"
	"github.com/feral-file/ff-state-reducer/internal/logger"
)

// redisRecheckInterval is how long the limiter stays on the local fallback after a Redis error
const redisRecheckInterval = 10 * time.Second

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits requests per caller key
//
//go:generate mockgen -source=limiter.go -destination=../mocks/ratelimit.go -package=mocks -mock_names=Limiter=MockRateLimiter
type Limiter interface {
	// Allow consumes one token of key without blocking
	Allow(ctx context.Context, key string) (Decision, error)
}

type limiter struct {
	config        config.RateLimitConfig
	distributed   adapter.RedisRateLimiter
	local         *rate.Limiter
	clock         adapter.Clock
	redisDownTill atomic.Int64
}

// NewLimiter creates a limiter shared across instances through Redis.
// When Redis fails and the local fallback is enabled, each instance limits on its own
// at RequestsPerSecond scaled by LocalFallbackMultiplier.
func NewLimiter(cfg config.RateLimitConfig, rc adapter.RedisClient, clock adapter.Clock) (Limiter, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	l := &limiter{
		config:      cfg,
		distributed: rc.NewRateLimiter(),
		local:       rate.NewLimiter(rate.Limit(max(float64(cfg.RequestsPerSecond)*cfg.LocalFallbackMultiplier, 1.0)), cfg.Burst),
		clock:       clock,
	}

	if err := rc.Ping(ctx); err != nil {
		if !cfg.EnableLocalFallback {
			return nil, fmt.Errorf("redis unavailable and fallback disabled: %w", err)
		}
		logger.Warn("Redis unavailable, will use local fallback", zap.Error(err))
		l.markRedisDown()
	}

	logger.Info("Rate limiter initialized",
		zap.Int("requests_per_second", cfg.RequestsPerSecond),
		zap.Int("burst", cfg.Burst),
		zap.Bool("local_fallback", cfg.EnableLocalFallback),
	)
	return l, nil
}

func (l *limiter) Allow(ctx context.Context, key string) (Decision, error) {
	if l.redisAvailable() {
		res, err := l.distributed.Allow(ctx, l.config.RedisKeyPrefix+key, redis_rate.Limit{
			Rate:   l.config.RequestsPerSecond,
			Burst:  l.config.Burst,
			Period: time.Second,
		})
		if err == nil {
			return Decision{Allowed: res.Allowed > 0, Remaining: res.Remaining, RetryAfter: res.RetryAfter}, nil
		}
		if ctx.Err() != nil {
			return Decision{}, ctx.Err()
		}
		if !l.config.EnableLocalFallback {
			return Decision{}, fmt.Errorf("redis rate limiter unavailable: %w", err)
		}

		logger.WarnCtx(ctx, "Redis rate limiter error, falling back to local", zap.Error(err))
		l.markRedisDown()
	}

	r := l.local.ReserveN(l.clock.Now(), 1)
	if !r.OK() {
		return Decision{}, fmt.Errorf("burst of %d cannot admit a request", l.config.Burst)
	}
	if delay := r.DelayFrom(l.clock.Now()); delay > 0 {
		r.CancelAt(l.clock.Now())
		return Decision{RetryAfter: delay}, nil
	}
	return Decision{Allowed: true, Remaining: int(l.local.TokensAt(l.clock.Now()))}, nil
}

func (l *limiter) redisAvailable() bool {
	return l.clock.Now().UnixNano() >= l.redisDownTill.Load()
}

func (l *limiter) markRedisDown() {
	l.redisDownTill.Store(l.clock.Now().Add(redisRecheckInterval).UnixNano())
}

// validateConfig validates and sets defaults for the configuration
func validateConfig(cfg *config.RateLimitConfig) error {
	if cfg.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive")
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerSecond
	}
	if cfg.RedisKeyPrefix == "" {
		cfg.RedisKeyPrefix = "ff:reducer:limiter:"
	}
	if cfg.LocalFallbackMultiplier <= 0 {
		cfg.LocalFallbackMultiplier = 1.0
	}
	return nil
}
