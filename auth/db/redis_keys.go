package db

import (
	"fmt"
	"strings"
)

// Key prefixes for cached store entries
const (
	authProviderKeyPrefix = "oauthreg:cache:auth_provider:"
	configMapKeyPrefix    = "oauthreg:cache:config_map:"
)

// RedisKeyBuilder provides methods to build Redis keys following the defined patterns
type RedisKeyBuilder struct{}

// NewRedisKeyBuilder creates a new Redis key builder
func NewRedisKeyBuilder() *RedisKeyBuilder {
	return &RedisKeyBuilder{}
}

// CacheAuthProviderKey builds the cache key for an auth provider definition
func (b *RedisKeyBuilder) CacheAuthProviderKey(name string) string {
	return authProviderKeyPrefix + name
}

// CacheConfigMapKey builds the cache key for a credential config map
func (b *RedisKeyBuilder) CacheConfigMapKey(name string) string {
	return configMapKeyPrefix + name
}

// CachePattern matches every cached store entry
func (b *RedisKeyBuilder) CachePattern() string {
	return "oauthreg:cache:*"
}

// ParseCacheKey splits a cache key into its kind and name
func (b *RedisKeyBuilder) ParseCacheKey(key string) (kind, name string, err error) {
	switch {
	case strings.HasPrefix(key, authProviderKeyPrefix):
		return "auth_provider", strings.TrimPrefix(key, authProviderKeyPrefix), nil
	case strings.HasPrefix(key, configMapKeyPrefix):
		return "config_map", strings.TrimPrefix(key, configMapKeyPrefix), nil
	default:
		return "", "", fmt.Errorf("invalid cache key format: %s", key)
	}
}
