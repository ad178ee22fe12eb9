package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ericfitz/oauthreg/api/models"
	"github.com/ericfitz/oauthreg/auth/db"
	"github.com/ericfitz/oauthreg/auth/repository"
	"github.com/ericfitz/oauthreg/internal/config"
	"github.com/ericfitz/oauthreg/internal/crypto"
	"github.com/ericfitz/oauthreg/internal/dbschema"
	"github.com/ericfitz/oauthreg/internal/slogging"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to configuration file")
		seed       = flag.Bool("seed", false, "Upsert the auth providers and config maps from the config file's seed section")
		rotateKeys = flag.Bool("rotate-keys", false, "Re-encrypt stored config maps with the current database encryption key")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := slogging.Initialize(slogging.Config{
		Level:  cfg.GetLogLevel(),
		IsDev:  true,
		Output: os.Stdout,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	result, err := migrate(context.Background(), cfg, options{seed: *seed, rotateKeys: *rotateKeys})
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	fmt.Println("\nDatabase migration complete!")
	if *seed {
		fmt.Printf("   Seeded %d auth providers and %d config maps.\n", result.seed.AuthProviders, result.seed.ConfigMaps)
	}
	if *rotateKeys {
		fmt.Printf("   Re-encrypted %d config maps.\n", result.rotated)
	}
	if result.invalidated > 0 {
		fmt.Printf("   Cleared %d cached entries from redis.\n", result.invalidated)
	}
}

type options struct {
	seed       bool
	rotateKeys bool
}

type outcome struct {
	seed        repository.SeedResult
	rotated     int
	invalidated int
}

// migrate creates or updates the tables, then optionally seeds them and
// re-encrypts stored config maps. When either changes stored rows and redis
// is enabled, the read-through cache is cleared so servers reload them.
func migrate(ctx context.Context, cfg *config.Config, opts options) (outcome, error) {
	logger := slogging.Get()

	encryptor, err := crypto.NewValueEncryptor(cfg.Database.EncryptionKey, cfg.Database.PreviousEncryptionKey, cfg.Database.EncryptionContextID)
	if err != nil {
		return outcome{}, err
	}
	if opts.rotateKeys && !encryptor.Enabled() {
		return outcome{}, fmt.Errorf("key rotation requires a database encryption key")
	}

	gormDB, err := db.NewGormDB(db.GormConfigFromSettings(cfg.Database, false))
	if err != nil {
		return outcome{}, fmt.Errorf("failed to connect to %s database: %w", cfg.Database.Type, err)
	}
	defer func() {
		if err := gormDB.Close(); err != nil {
			logger.Error("Error closing database: %v", err)
		}
	}()

	logger.Info("Running auto-migration for %d models", len(models.AllModels()))
	if err := gormDB.AutoMigrate(models.AllModels()...); err != nil {
		return outcome{}, err
	}
	if err := dbschema.Check(gormDB.DB(), models.AllModels()...); err != nil {
		return outcome{}, err
	}

	store := repository.NewGormStore(gormDB.DB(), repository.WithEncryptor(encryptor))

	var result outcome
	if opts.seed {
		if result.seed, err = repository.Seed(ctx, store, cfg.Seed.AuthProviders, cfg.Seed.ConfigMaps); err != nil {
			return result, err
		}
	}
	if opts.rotateKeys {
		if result.rotated, err = store.RotateConfigMapEncryption(ctx); err != nil {
			return result, err
		}
	}
	if (opts.seed || opts.rotateKeys) && cfg.Redis.Enabled {
		if result.invalidated, err = clearCache(ctx, cfg, store, encryptor); err != nil {
			return result, err
		}
	}
	return result, nil
}

func clearCache(ctx context.Context, cfg *config.Config, store repository.Store, encryptor *crypto.ValueEncryptor) (int, error) {
	redisDB, err := db.NewRedisDB(db.RedisConfigFromSettings(cfg.Redis, false))
	if err != nil {
		return 0, fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() {
		if err := redisDB.Close(); err != nil {
			slogging.Get().Error("Error closing redis: %v", err)
		}
	}()

	cached := repository.NewCachedStore(store, redisDB, cfg.Redis.CacheTTL, repository.WithCacheEncryptor(encryptor))
	return cached.InvalidateAll(ctx)
}
