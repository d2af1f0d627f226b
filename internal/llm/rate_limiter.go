package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/rohankatakam/scholargraph/internal/config"
)

// Limiter gates outbound completions
type Limiter interface {
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
	Close() error
}

// NewLimiter builds the limiter described by cfg. It returns nil when
// RequestsPerMinute is 0 (unlimited). With a Redis address the budget is
// shared across every process using that Redis; otherwise it is local.
func NewLimiter(ctx context.Context, cfg config.RateLimitConfig, logger *slog.Logger) (Limiter, error) {
	if cfg.RequestsPerMinute <= 0 {
		return nil, nil
	}
	if cfg.RedisAddr != "" {
		return NewRedisLimiter(ctx, cfg.RedisAddr, cfg.RedisPassword, int64(cfg.RequestsPerMinute), logger)
	}
	return NewLocalLimiter(cfg.RequestsPerMinute), nil
}

// LocalLimiter is an in-process token bucket
type LocalLimiter struct {
	limiter *rate.Limiter
}

// NewLocalLimiter allows rpm requests per minute with a burst of one
func NewLocalLimiter(rpm int) *LocalLimiter {
	return &LocalLimiter{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
}

// Wait implements Limiter
func (l *LocalLimiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}

// Close implements Limiter
func (l *LocalLimiter) Close() error { return nil }

// ErrRateLimited is returned by CheckAndIncrement when the minute budget is spent
var ErrRateLimited = stderrors.New("llm rate limit reached")

// rateLimitScript increments the per-minute counter and reports whether the
// limit was crossed. Check and increment happen atomically.
var rateLimitScript = redis.NewScript(`
	local rpm_key = KEYS[1]
	local rpm_limit = tonumber(ARGV[1])

	local rpm = redis.call('INCR', rpm_key)
	-- 70 seconds: 10s buffer for clock skew between processes
	if rpm == 1 then redis.call('EXPIRE', rpm_key, 70) end

	if rpm > rpm_limit then
		return {-1, rpm, rpm_limit}
	end
	return {0, rpm, rpm_limit}
`)

// RedisLimiter keeps a per-minute request counter in Redis
type RedisLimiter struct {
	redis     *redis.Client
	rpmLimit  int64
	keyPrefix string
	logger    *slog.Logger
	now       func() time.Time
}

// NewRedisLimiter connects to Redis and verifies the connection
func NewRedisLimiter(ctx context.Context, addr, password string, rpm int64, logger *slog.Logger) (*RedisLimiter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return &RedisLimiter{
		redis:     client,
		rpmLimit:  rpm,
		keyPrefix: "scholargraph:llm:rpm",
		logger:    logger.With("component", "llm_rate_limiter"),
		now:       time.Now,
	}, nil
}

func (r *RedisLimiter) minuteKey(t time.Time) string {
	return fmt.Sprintf("%s:%s", r.keyPrefix, t.UTC().Format("2006-01-02T15:04"))
}

// CheckAndIncrement counts one request against the current minute.
// Returns ErrRateLimited (wrapped) with the seconds left in the window.
func (r *RedisLimiter) CheckAndIncrement(ctx context.Context) (time.Duration, error) {
	now := r.now()

	result, err := rateLimitScript.Run(ctx, r.redis, []string{r.minuteKey(now)}, r.rpmLimit).Result()
	if err != nil {
		return 0, fmt.Errorf("rate limiter Redis operation failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 3 {
		return 0, fmt.Errorf("invalid rate limiter response format")
	}
	code, _ := values[0].(int64)
	if code == 0 {
		return 0, nil
	}

	current, _ := values[1].(int64)
	wait := time.Duration(60-now.Second()) * time.Second
	if wait <= 0 {
		wait = time.Second
	}
	return wait, fmt.Errorf("%w (%d/%d this minute, wait %ds)", ErrRateLimited, current, r.rpmLimit, int(wait.Seconds()))
}

// Wait retries CheckAndIncrement until the window resets or ctx is done
func (r *RedisLimiter) Wait(ctx context.Context) error {
	for {
		wait, err := r.CheckAndIncrement(ctx)
		if err == nil {
			return nil
		}
		if !stderrors.Is(err, ErrRateLimited) {
			return err
		}

		r.logger.Warn("llm rate limit reached, throttling", "wait_seconds", wait.Seconds())
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// CurrentUsage returns the request count of the current minute
func (r *RedisLimiter) CurrentUsage(ctx context.Context) (int64, error) {
	n, err := r.redis.Get(ctx, r.minuteKey(r.now())).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get usage stats: %w", err)
	}
	return n, nil
}

// Close closes the Redis connection
func (r *RedisLimiter) Close() error {
	if r.redis != nil {
		return r.redis.Close()
	}
	return nil
}
