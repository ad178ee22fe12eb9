package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfitz/oauthreg/api"
	"github.com/ericfitz/oauthreg/api/models"
	"github.com/ericfitz/oauthreg/auth/db"
	"github.com/ericfitz/oauthreg/auth/registration"
	"github.com/ericfitz/oauthreg/auth/repository"
	"github.com/ericfitz/oauthreg/internal/config"
	"github.com/ericfitz/oauthreg/internal/crypto"
	"github.com/ericfitz/oauthreg/internal/secrets"
	"github.com/ericfitz/oauthreg/internal/slogging"
)

// components holds the storage stack the HTTP server is built on
type components struct {
	store        repository.Store
	secrets      registration.SecretStore
	resolver     *registration.Resolver
	healthChecks map[string]api.HealthCheck
	closers      []func() error
}

// Close releases every opened connection, newest first
func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildComponents opens the configured store, cache and secrets provider
func buildComponents(ctx context.Context, cfg *config.Config) (_ *components, err error) {
	logger := slogging.Get()
	c := &components{healthChecks: map[string]api.HealthCheck{}}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	encryptor, err := crypto.NewValueEncryptor(cfg.Database.EncryptionKey, cfg.Database.PreviousEncryptionKey, cfg.Database.EncryptionContextID)
	if err != nil {
		return nil, err
	}

	switch cfg.Store.Backend {
	case config.StoreBackendDatabase:
		gormDB, err := db.NewGormDB(db.GormConfigFromSettings(cfg.Database, cfg.Telemetry.Enabled))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.closers = append(c.closers, gormDB.Close)
		if err := gormDB.AutoMigrate(models.AllModels()...); err != nil {
			return nil, err
		}
		c.store = repository.NewGormStore(gormDB.DB(), repository.WithEncryptor(encryptor))
		c.healthChecks["database"] = gormDB.Ping
		logger.Info("Using %s database store (config map encryption: %v)", cfg.Database.Type, encryptor.Enabled())

	default:
		memory := repository.NewMemoryStore()
		if _, err := repository.Seed(ctx, memory, cfg.Seed.AuthProviders, cfg.Seed.ConfigMaps); err != nil {
			return nil, err
		}
		c.store = memory
		logger.Info("Using in-memory store")
	}

	if cfg.Redis.Enabled {
		redisDB, err := db.NewRedisDB(db.RedisConfigFromSettings(cfg.Redis, cfg.Telemetry.Enabled))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		c.closers = append(c.closers, redisDB.Close)
		c.store = repository.NewCachedStore(c.store, redisDB, cfg.Redis.CacheTTL, repository.WithCacheEncryptor(encryptor))
		c.healthChecks["redis"] = redisDB.Ping
		logger.Info("Caching auth providers in redis for %s (sealed config maps: %v)", cfg.Redis.CacheTTL, encryptor.Enabled())
	}

	provider, err := secrets.NewProvider(ctx, &cfg.Secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider: %w", err)
	}
	if provider != nil {
		c.closers = append(c.closers, provider.Close)
		c.secrets = repository.NewSecretsStore(provider)
		logger.Info("Reading credential config maps from %s secrets provider", provider.Name())
	} else {
		c.secrets = c.store
	}

	c.resolver = registration.NewResolver(c.store, c.secrets)
	return c, nil
}
