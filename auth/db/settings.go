package db

import "github.com/ericfitz/oauthreg/internal/config"

// GormConfigFromSettings maps the application database section onto GormConfig
func GormConfigFromSettings(cfg config.DatabaseConfig, tracing bool) GormConfig {
	return GormConfig{
		Type:            DatabaseType(cfg.Type),
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		SQLitePath:      cfg.SQLitePath,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		Tracing:         tracing,
	}
}

// RedisConfigFromSettings maps the application redis section onto RedisConfig
func RedisConfigFromSettings(cfg config.RedisConfig, tracing bool) RedisConfig {
	return RedisConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
		Tracing:  tracing,
	}
}
