package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/velora-ai/velora-backend/internal/platform/envutil"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
)

// RateLimiter is a fixed-window counter per (tenant, window). It protects the
// chat endpoint from widget abuse; absence of REDIS_ADDR disables it entirely
// at wiring time.
type RateLimiter struct {
	log    *logger.Logger
	rdb    *goredis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(log *logger.Logger) (*RateLimiter, error) {
	addr := strings.TrimSpace(envutil.String("REDIS_ADDR", ""))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    envutil.String("REDIS_PASSWORD", ""),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RateLimiter{
		log:    log.With("client", "RedisRateLimiter"),
		rdb:    rdb,
		limit:  envutil.Int("CHAT_RATE_LIMIT", 120),
		window: envutil.Duration("CHAT_RATE_WINDOW", time.Minute),
	}, nil
}

// Allow increments the tenant's counter for the current window and reports
// whether the request is under the limit.
func (rl *RateLimiter) Allow(ctx context.Context, tenantKey string) (bool, error) {
	bucket := time.Now().Truncate(rl.window).Unix()
	key := fmt.Sprintf("ratelimit:chat:%s:%d", tenantKey, bucket)

	count, err := rl.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		rl.rdb.Expire(ctx, key, rl.window)
	}
	return count <= int64(rl.limit), nil
}

func (rl *RateLimiter) Close() error {
	return rl.rdb.Close()
}
