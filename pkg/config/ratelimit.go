package config

import (
	"time"

	"github.com/tendant/simple-stepup/pkg/ratelimit"
)

// RateLimitConfig bounds code send and check attempts.
// A capacity of 0 disables that limiter.
type RateLimitConfig struct {
	PerUserCapacity int           `env:"CODE_RATE_LIMIT_PER_USER" env-default:"5"`
	PerIPCapacity   int           `env:"CODE_RATE_LIMIT_PER_IP" env-default:"20"`
	Window          time.Duration `env:"CODE_RATE_LIMIT_WINDOW" env-default:"15m"`
	BucketTTL       time.Duration `env:"CODE_RATE_LIMIT_BUCKET_TTL" env-default:"1h"`
}

// ToMiddlewareConfig spreads each capacity evenly over Window
func (c RateLimitConfig) ToMiddlewareConfig() ratelimit.Config {
	cfg := ratelimit.Config{
		PerUserCapacity: c.PerUserCapacity,
		PerIPCapacity:   c.PerIPCapacity,
		BucketTTL:       c.BucketTTL,
		RetryAfter:      time.Minute,
	}
	if seconds := c.Window.Seconds(); seconds > 0 {
		cfg.PerUserRefillRate = float64(c.PerUserCapacity) / seconds
		cfg.PerIPRefillRate = float64(c.PerIPCapacity) / seconds
	}
	return cfg
}
