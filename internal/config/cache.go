package config

import "time"

// AppCacheConfig controls the Redis cache in front of application lookups.
// When Enabled is false or no Redis client is available the lookups go
// straight to MySQL.
type AppCacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadAppCacheConfig reads APP_CACHE_* variables.
func LoadAppCacheConfig() AppCacheConfig {
	return AppCacheConfig{
		Enabled: envBool("APP_CACHE_ENABLED", true),
		TTL:     envDur("APP_CACHE_TTL", time.Minute),
		Prefix:  envStr("APP_CACHE_PREFIX", "apps"),
	}
}
