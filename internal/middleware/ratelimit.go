package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/config"
	"github.com/diewo77/go-billing/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimit limits requests per client IP. The counters live in redis when
// cfg.RedisURL is set, so several server instances share them, and in
// process memory otherwise. A disabled config returns a pass-through.
func RateLimit(ctx context.Context, cfg config.RateLimitConfig) (func(http.Handler) http.Handler, error) {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, fmt.Errorf("rate limit %q: %w", cfg.Rate, err)
	}

	store := memory.NewStore()
	if cfg.RedisURL != "" {
		client, err := NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		store, err = sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "billing:ratelimit"})
		if err != nil {
			return nil, fmt.Errorf("rate limit store: %w", err)
		}
		log.Info().Msg("rate limiter using redis store")
	}

	mw := stdlib.NewMiddleware(limiter.New(store, rate),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.JSONError(w, http.StatusTooManyRequests, "rate_limited", nil)
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Ctx(r.Context()).Error().Err(err).Msg("rate limiter failed")
			httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		}),
	)
	return mw.Handler, nil
}

// NewRedis creates and validates a go-redis client connection.
func NewRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
