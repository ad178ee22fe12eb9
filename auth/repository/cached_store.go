package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ericfitz/oauthreg/auth/db"
	"github.com/ericfitz/oauthreg/auth/registration"
	"github.com/ericfitz/oauthreg/internal/crypto"
	"github.com/ericfitz/oauthreg/internal/slogging"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL applies when NewCachedStore is given a non-positive TTL
const DefaultCacheTTL = 5 * time.Minute

// CachedStore is a Redis read-through cache in front of another Store.
// Concurrent misses for the same key share one load from the backing store;
// the load is detached from any single caller's cancellation and each caller
// stops waiting when its own context ends. Absent entries are not cached, and
// Redis failures fall back to the backing store.
type CachedStore struct {
	inner     Store
	redis     *db.RedisDB
	keys      *db.RedisKeyBuilder
	ttl       time.Duration
	encryptor *crypto.ValueEncryptor
	group     singleflight.Group
	logger    *slogging.Logger

	// flightJoined runs once a caller is registered with the in-flight load for key
	flightJoined func(key string)
}

// CachedStoreOption configures a CachedStore
type CachedStoreOption func(*CachedStore)

// WithCacheEncryptor seals config map values before they are written to Redis.
// A nil encryptor caches plaintext.
func WithCacheEncryptor(enc *crypto.ValueEncryptor) CachedStoreOption {
	return func(s *CachedStore) {
		s.encryptor = enc
	}
}

// NewCachedStore wraps inner with a Redis cache
func NewCachedStore(inner Store, redis *db.RedisDB, ttl time.Duration, opts ...CachedStoreOption) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	s := &CachedStore{
		inner:  inner,
		redis:  redis,
		keys:   db.NewRedisKeyBuilder(),
		ttl:    ttl,
		logger: slogging.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAuthProvider implements registration.ProviderStore
func (s *CachedStore) FetchAuthProvider(ctx context.Context, name string) (*registration.AuthProvider, error) {
	return readThrough(ctx, s, s.keys.CacheAuthProviderKey(name),
		func(ctx context.Context) (*registration.AuthProvider, error) {
			return s.inner.FetchAuthProvider(ctx, name)
		},
		cloneAuthProvider,
		jsonCodec[registration.AuthProvider]{},
	)
}

// FetchConfigMap implements registration.SecretStore
func (s *CachedStore) FetchConfigMap(ctx context.Context, name string) (*registration.ConfigMap, error) {
	return readThrough(ctx, s, s.keys.CacheConfigMapKey(name),
		func(ctx context.Context) (*registration.ConfigMap, error) {
			return s.inner.FetchConfigMap(ctx, name)
		},
		cloneConfigMap,
		sealedConfigMapCodec{encryptor: s.encryptor},
	)
}

// ListAuthProviders is served by the backing store
func (s *CachedStore) ListAuthProviders(ctx context.Context) ([]registration.AuthProvider, error) {
	return s.inner.ListAuthProviders(ctx)
}

// SaveAuthProvider writes through and drops the cached entry
func (s *CachedStore) SaveAuthProvider(ctx context.Context, provider *registration.AuthProvider) error {
	if err := s.inner.SaveAuthProvider(ctx, provider); err != nil {
		return err
	}
	return s.InvalidateAuthProvider(ctx, provider.Name)
}

// DeleteAuthProvider deletes from the backing store and drops the cached entry
func (s *CachedStore) DeleteAuthProvider(ctx context.Context, name string) error {
	if err := s.inner.DeleteAuthProvider(ctx, name); err != nil {
		return err
	}
	return s.InvalidateAuthProvider(ctx, name)
}

// SaveConfigMap writes through and drops the cached entry
func (s *CachedStore) SaveConfigMap(ctx context.Context, configMap *registration.ConfigMap) error {
	if err := s.inner.SaveConfigMap(ctx, configMap); err != nil {
		return err
	}
	return s.InvalidateConfigMap(ctx, configMap.Name)
}

// DeleteConfigMap deletes from the backing store and drops the cached entry
func (s *CachedStore) DeleteConfigMap(ctx context.Context, name string) error {
	if err := s.inner.DeleteConfigMap(ctx, name); err != nil {
		return err
	}
	return s.InvalidateConfigMap(ctx, name)
}

// InvalidateAuthProvider drops the cached provider definition
func (s *CachedStore) InvalidateAuthProvider(ctx context.Context, name string) error {
	if err := s.redis.Del(ctx, s.keys.CacheAuthProviderKey(name)); err != nil {
		return fmt.Errorf("failed to invalidate cached auth provider %s: %w", name, err)
	}
	return nil
}

// InvalidateConfigMap drops the cached config map
func (s *CachedStore) InvalidateConfigMap(ctx context.Context, name string) error {
	if err := s.redis.Del(ctx, s.keys.CacheConfigMapKey(name)); err != nil {
		return fmt.Errorf("failed to invalidate cached config map %s: %w", name, err)
	}
	return nil
}

// InvalidateAll drops every cached entry and returns how many were removed
func (s *CachedStore) InvalidateAll(ctx context.Context) (int, error) {
	n, err := s.redis.DeleteByPattern(ctx, s.keys.CachePattern())
	if err != nil {
		return n, err
	}
	s.logger.Info("Invalidated %d cached store entries", n)
	return n, nil
}

// cacheCodec converts values to and from their Redis representation
type cacheCodec[T any] interface {
	encode(v *T) ([]byte, error)
	decode(raw string) (*T, error)
}

type jsonCodec[T any] struct{}

func (jsonCodec[T]) encode(v *T) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec[T]) decode(raw string) (*T, error) {
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// sealedConfigMapCodec encrypts each config map value so cached credentials
// are never stored in plaintext when an encryptor is configured
type sealedConfigMapCodec struct {
	encryptor *crypto.ValueEncryptor
}

func (c sealedConfigMapCodec) encode(cm *registration.ConfigMap) ([]byte, error) {
	sealed := &registration.ConfigMap{Name: cm.Name, Data: make(map[string]string, len(cm.Data))}
	for k, v := range cm.Data {
		enc, err := c.encryptor.Encrypt(v)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", k, err)
		}
		sealed.Data[k] = enc
	}
	return json.Marshal(sealed)
}

func (c sealedConfigMapCodec) decode(raw string) (*registration.ConfigMap, error) {
	cm, err := jsonCodec[registration.ConfigMap]{}.decode(raw)
	if err != nil {
		return nil, err
	}
	for k, v := range cm.Data {
		plain, err := c.encryptor.Decrypt(v)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", k, err)
		}
		cm.Data[k] = plain
	}
	return cm, nil
}

func readThrough[T any](
	ctx context.Context,
	s *CachedStore,
	key string,
	load func(context.Context) (*T, error),
	clone func(*T) *T,
	codec cacheCodec[T],
) (*T, error) {
	raw, found, err := s.redis.Get(ctx, key)
	switch {
	case err != nil:
		s.logger.Warn("Cache read failed for %s, using backing store: %v", key, err)
	case found:
		cached, err := codec.decode(raw)
		if err == nil {
			return cached, nil
		}
		s.logger.Warn("Discarding undecodable cache entry %s: %v", key, err)
		_ = s.redis.Del(ctx, key)
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		loaded, err := load(loadCtx)
		if err != nil || loaded == nil {
			return loaded, err
		}
		data, err := codec.encode(loaded)
		if err != nil {
			s.logger.Warn("Not caching %s: %v", key, err)
			return loaded, nil
		}
		if err := s.redis.Set(loadCtx, key, data, s.ttl); err != nil {
			s.logger.Warn("Cache write failed for %s: %v", key, err)
		}
		return loaded, nil
	})
	if s.flightJoined != nil {
		s.flightJoined(key)
	}

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	loaded, _ := res.Val.(*T)
	if loaded == nil {
		return nil, nil
	}
	// callers sharing a flight must not share the value
	return clone(loaded), nil
}
