package config

import "time"

type CacheConfig interface {
	GetCacheDriver() string
	GetCacheTTL() time.Duration
	GetCacheMaxEntries() int
	GetRedisAddr() string
	GetRedisDB() int
	GetRedisPrefix() string
}

type Cache struct{}

var _ CacheConfig = Cache{}

// GetCacheDriver is one of "memory", "redis" or "none".
func (Cache) GetCacheDriver() string {
	return GetEnv("CACHE_DRIVER", "memory")
}

func (Cache) GetCacheTTL() time.Duration {
	return GetEnvDuration("CACHE_TTL", 15*time.Minute)
}

func (Cache) GetCacheMaxEntries() int {
	return GetEnvInt("CACHE_MAX_ENTRIES", 100)
}

func (Cache) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Cache) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}

func (Cache) GetRedisPrefix() string {
	return GetEnv("REDIS_PREFIX", "token-broker")
}
