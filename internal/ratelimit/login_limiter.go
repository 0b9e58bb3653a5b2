package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/identra/internal/config"
)

const (
	keyLogin = "throttle:login:%s"
	keyToken = "throttle:token:%s"
)

// LoginLimiter throttles authentication endpoints per source IP. When redis
// is not configured the limiter is disabled and every request passes.
type LoginLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewLoginLimiter(cfg config.Config) *LoginLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return &LoginLimiter{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})
	return &LoginLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.LoginRate,
		burst:   cfg.LoginBurst,
	}
}

func (l *LoginLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *LoginLimiter) AllowLogin(ctx context.Context, ip string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyLogin, strings.TrimSpace(ip)), l.rate, l.burst)
}

func (l *LoginLimiter) AllowToken(ctx context.Context, ip string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyToken, strings.TrimSpace(ip)), l.rate, l.burst)
}
