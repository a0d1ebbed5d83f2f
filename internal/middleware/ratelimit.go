package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/theater-canteen/internal/config"
)

var limiterScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		local until_next = interval_ms - (now_ms - last_refill)
		if until_next < 0 then until_next = 0 end
		retry_after_ms = until_next
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill, 'capacity', capacity)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

type bucketDecision struct {
	allowed   bool
	remaining int64
	retryMs   int64
}

type tokenBucket struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
	ttl time.Duration
}

func (b *tokenBucket) take(ctx context.Context, key string) (bucketDecision, error) {
	vals, err := limiterScript.Run(ctx, b.rdb, []string{key},
		time.Now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(b.ttl/time.Second),
	).Int64Slice()
	if err != nil {
		return bucketDecision{}, err
	}
	if len(vals) != 3 {
		return bucketDecision{}, fmt.Errorf("ratelimit: unexpected script result %v", vals)
	}
	return bucketDecision{allowed: vals[0] == 1, remaining: vals[1], retryMs: vals[2]}, nil
}

// NewTokenBucket limits requests with a Redis-backed token bucket keyed by
// cfg.KeyStrategy. It is a no-op when disabled or without Redis, and lets
// requests through when Redis fails.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	b := &tokenBucket{cfg: cfg, rdb: rdb, ttl: cfg.TTL}
	if b.ttl < time.Second {
		b.ttl = time.Hour
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			d, err := b.take(c.Request().Context(), key)
			if err != nil {
				log.Warn("ratelimit: redis error", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if d.allowed {
				return next(c)
			}

			secs := int(math.Ceil(float64(d.retryMs) / 1000))
			if secs < 1 {
				secs = 1
			}
			h.Set("Retry-After", strconv.Itoa(secs))
			if cfg.Debug {
				log.Debug("ratelimit: blocked", zap.String("key", key), zap.Int64("retry_ms", d.retryMs))
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

// rateKey builds the bucket key. Strategies: ip, user, theater (one bucket
// per tenant, guests fall back to ip), ip_route, user_route, and the
// default ip_user_route.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", userKey(c))
	case "theater":
		if tid := TheaterID(c); tid != 0 {
			parts = append(parts, "theater", strconv.FormatUint(tid, 10))
		} else {
			parts = append(parts, "ip", ip)
		}
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "user_route":
		parts = append(parts, "user", userKey(c), "route", route)
	default:
		parts = append(parts, "ip", ip, "user", userKey(c), "route", route)
	}
	return strings.Join(parts, ":")
}
