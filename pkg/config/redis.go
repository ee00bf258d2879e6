package config

import "time"

// RedisConfig holds the optional cache configuration.
// An empty URL disables caching.
type RedisConfig struct {
	URL      string        `env:"REDIS_URL" env-default:""`
	CacheTTL time.Duration `env:"SYSTEM_CONFIG_CACHE_TTL" env-default:"5m"`
}

// Enabled reports whether a redis URL was provided
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}
