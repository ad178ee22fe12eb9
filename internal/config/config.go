package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ericfitz/oauthreg/auth/registration"
	"github.com/ericfitz/oauthreg/internal/crypto"
	"github.com/ericfitz/oauthreg/internal/envutil"
	"github.com/ericfitz/oauthreg/internal/slogging"
	"github.com/ericfitz/oauthreg/internal/unicodecheck"
	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StoreBackendMemory   = "memory"
	StoreBackendDatabase = "database"
)

// Secret providers
const (
	SecretsProviderStore = "store"
	SecretsProviderEnv   = "env"
	SecretsProviderAWS   = "aws"
	SecretsProviderOCI   = "oci"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Secrets   SecretsConfig   `yaml:"secrets"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Seed      SeedConfig      `yaml:"seed"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `yaml:"port" env:"SERVER_PORT"`
	Interface    string        `yaml:"interface" env:"SERVER_INTERFACE"`
	BaseURL      string        `yaml:"base_url" env:"SERVER_BASE_URL"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
}

// StoreConfig selects where auth provider definitions live
type StoreConfig struct {
	Backend string `yaml:"backend" env:"STORE_BACKEND"`
}

// DatabaseConfig holds relational database configuration
type DatabaseConfig struct {
	Type            string        `yaml:"type" env:"DATABASE_TYPE"`
	Host            string        `yaml:"host" env:"DATABASE_HOST"`
	Port            string        `yaml:"port" env:"DATABASE_PORT"`
	User            string        `yaml:"user" env:"DATABASE_USER"`
	Password        string        `yaml:"password" env:"DATABASE_PASSWORD"`
	Database        string        `yaml:"database" env:"DATABASE_NAME"`
	SSLMode         string        `yaml:"sslmode" env:"DATABASE_SSL_MODE"`
	SQLitePath      string        `yaml:"sqlite_path" env:"DATABASE_SQLITE_PATH"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`

	// Hex-encoded AES-256 keys for config map values at rest. Values are
	// stored in plaintext when EncryptionKey is empty.
	EncryptionKey         string `yaml:"encryption_key" env:"DATABASE_ENCRYPTION_KEY"`
	PreviousEncryptionKey string `yaml:"previous_encryption_key" env:"DATABASE_PREVIOUS_ENCRYPTION_KEY"`
	EncryptionContextID   int    `yaml:"encryption_context_id" env:"DATABASE_ENCRYPTION_CONTEXT_ID"`
}

// RedisConfig holds Redis cache configuration
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled" env:"REDIS_ENABLED"`
	Host     string        `yaml:"host" env:"REDIS_HOST"`
	Port     string        `yaml:"port" env:"REDIS_PORT"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"REDIS_CACHE_TTL"`
}

// SecretsConfig selects where credential config maps are read from
type SecretsConfig struct {
	Provider         string `yaml:"provider" env:"SECRETS_PROVIDER"`
	EnvPrefix        string `yaml:"env_prefix" env:"SECRETS_ENV_PREFIX"`
	AWSRegion        string `yaml:"aws_region" env:"SECRETS_AWS_REGION"`
	AWSSecretPrefix  string `yaml:"aws_secret_prefix" env:"SECRETS_AWS_SECRET_PREFIX"`
	OCICompartmentID string `yaml:"oci_compartment_id" env:"SECRETS_OCI_COMPARTMENT_ID"`
	OCIVaultID       string `yaml:"oci_vault_id" env:"SECRETS_OCI_VAULT_ID"`
}

// AuthConfig holds login entry point configuration
type AuthConfig struct {
	StateSecret string        `yaml:"state_secret" env:"AUTH_STATE_SECRET"`
	StateTTL    time.Duration `yaml:"state_ttl" env:"AUTH_STATE_TTL"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level" env:"LOGGING_LEVEL"`
	IsDev            bool   `yaml:"is_dev" env:"LOGGING_IS_DEV"`
	LogDir           string `yaml:"log_dir" env:"LOGGING_LOG_DIR"`
	MaxAgeDays       int    `yaml:"max_age_days" env:"LOGGING_MAX_AGE_DAYS"`
	MaxSizeMB        int    `yaml:"max_size_mb" env:"LOGGING_MAX_SIZE_MB"`
	MaxBackups       int    `yaml:"max_backups" env:"LOGGING_MAX_BACKUPS"`
	AlsoLogToConsole bool   `yaml:"also_log_to_console" env:"LOGGING_ALSO_LOG_TO_CONSOLE"`
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled         bool          `yaml:"enabled" env:"TELEMETRY_ENABLED"`
	ServiceName     string        `yaml:"service_name" env:"TELEMETRY_SERVICE_NAME"`
	ServiceVersion  string        `yaml:"service_version" env:"TELEMETRY_SERVICE_VERSION"`
	ConsoleExporter bool          `yaml:"console_exporter" env:"TELEMETRY_CONSOLE_EXPORTER"`
	OTLPEndpoint    string        `yaml:"otlp_endpoint" env:"TELEMETRY_OTLP_ENDPOINT"`
	MetricsInterval time.Duration `yaml:"metrics_interval" env:"TELEMETRY_METRICS_INTERVAL"`
	TraceSampleRate float64       `yaml:"trace_sample_rate" env:"TELEMETRY_TRACE_SAMPLE_RATE"`
}

// SeedConfig holds definitions loaded into the store at startup or by the migrate tool
type SeedConfig struct {
	AuthProviders []registration.AuthProvider `yaml:"auth_providers"`
	ConfigMaps    []registration.ConfigMap    `yaml:"config_maps"`
}

// Load loads configuration from YAML file with environment variable overrides
func Load(configFile string) (*Config, error) {
	config := getDefaultConfig()

	if configFile != "" {
		if err := loadFromYAML(config, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config from YAML: %w", err)
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, fmt.Errorf("failed to override with environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// getDefaultConfig returns a configuration with default values
func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Interface:    "0.0.0.0",
			BaseURL:      "http://localhost:8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Store: StoreConfig{
			Backend: StoreBackendMemory,
		},
		Database: DatabaseConfig{
			Type:            "sqlite",
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Database:        "oauthreg",
			SSLMode:         "disable",
			SQLitePath:      "oauthreg.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     "6379",
			DB:       0,
			CacheTTL: 5 * time.Minute,
		},
		Secrets: SecretsConfig{
			Provider:  SecretsProviderStore,
			EnvPrefix: "OAUTHREG_CONFIGMAP_",
		},
		Auth: AuthConfig{
			StateTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:            "info",
			IsDev:            true,
			LogDir:           "logs",
			MaxAgeDays:       7,
			MaxSizeMB:        100,
			MaxBackups:       10,
			AlsoLogToConsole: true,
		},
		Telemetry: TelemetryConfig{
			Enabled:         false,
			ServiceName:     "oauthreg",
			ServiceVersion:  "dev",
			MetricsInterval: 30 * time.Second,
			TraceSampleRate: 1.0,
		},
	}
}

// loadFromYAML loads configuration from a YAML file
func loadFromYAML(config *Config, filename string) error {
	data, err := os.ReadFile(filename) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// overrideWithEnv overrides configuration values with environment variables
func overrideWithEnv(config *Config) error {
	return overrideStructWithEnv(reflect.ValueOf(config).Elem())
}

// overrideStructWithEnv recursively overrides struct fields with environment variables.
// Seed data is YAML-only.
func overrideStructWithEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := overrideStructWithEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := envutil.Get(envTag, "")
		if envValue == "" {
			continue
		}

		if err := setFieldFromString(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s from env %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

// setFieldFromString sets a struct field value from a string based on the field type
func setFieldFromString(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool value: %s", value)
		}
		field.SetBool(boolVal)
	case reflect.Int:
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid int value: %s", value)
		}
		field.SetInt(int64(intVal))
	case reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration value: %s", value)
			}
			field.SetInt(int64(duration))
		} else {
			intVal, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid int64 value: %s", value)
			}
			field.SetInt(intVal)
		}
	case reflect.Float64:
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value: %s", value)
		}
		field.SetFloat(floatVal)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		slice := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				slice = append(slice, trimmed)
			}
		}
		field.Set(reflect.ValueOf(slice))
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server base url is required")
	}
	if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server base url must be an absolute url: %s", c.Server.BaseURL)
	}

	switch c.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendDatabase:
		if err := c.Database.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}

	if c.Redis.Enabled {
		if c.Redis.Host == "" {
			return fmt.Errorf("redis host is required")
		}
		if c.Redis.Port == "" {
			return fmt.Errorf("redis port is required")
		}
		if c.Redis.CacheTTL <= 0 {
			return fmt.Errorf("redis cache ttl must be greater than 0")
		}
	}

	switch c.Secrets.Provider {
	case SecretsProviderStore, SecretsProviderEnv:
	case SecretsProviderAWS:
		if c.Secrets.AWSRegion == "" {
			return fmt.Errorf("aws region is required for the aws secrets provider")
		}
	case SecretsProviderOCI:
		if c.Secrets.OCICompartmentID == "" || c.Secrets.OCIVaultID == "" {
			return fmt.Errorf("oci compartment id and vault id are required for the oci secrets provider")
		}
	default:
		return fmt.Errorf("unsupported secrets provider: %s", c.Secrets.Provider)
	}

	if c.Auth.StateSecret == "" {
		return fmt.Errorf("auth state secret is required")
	}
	if c.Auth.StateTTL <= 0 {
		return fmt.Errorf("auth state ttl must be greater than 0")
	}

	if c.Telemetry.TraceSampleRate < 0 || c.Telemetry.TraceSampleRate > 1 {
		return fmt.Errorf("telemetry trace sample rate must be between 0 and 1")
	}

	seen := make(map[string]bool, len(c.Seed.AuthProviders))
	for _, p := range c.Seed.AuthProviders {
		if err := unicodecheck.ValidateIdentifier(p.Name); err != nil {
			return fmt.Errorf("seed auth provider name: %w", err)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate seed auth provider: %s", p.Name)
		}
		seen[p.Name] = true
	}
	for _, cm := range c.Seed.ConfigMaps {
		if err := unicodecheck.ValidateIdentifier(cm.Name); err != nil {
			return fmt.Errorf("seed config map name: %w", err)
		}
	}

	return nil
}

func (d *DatabaseConfig) validate() error {
	switch d.Type {
	case "sqlite":
		if d.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case "postgres", "mysql", "sqlserver":
		if d.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if d.Port == "" {
			return fmt.Errorf("database port is required")
		}
		if d.User == "" {
			return fmt.Errorf("database user is required")
		}
		if d.Database == "" {
			return fmt.Errorf("database name is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", d.Type)
	}

	if d.EncryptionKey == "" {
		if d.PreviousEncryptionKey != "" {
			return fmt.Errorf("database previous encryption key requires an encryption key")
		}
		return nil
	}
	if _, err := crypto.DecodeHexKey(d.EncryptionKey); err != nil {
		return fmt.Errorf("invalid database encryption key: %w", err)
	}
	if d.PreviousEncryptionKey != "" {
		if _, err := crypto.DecodeHexKey(d.PreviousEncryptionKey); err != nil {
			return fmt.Errorf("invalid database previous encryption key: %w", err)
		}
	}
	return nil
}

// GetLogLevel returns the parsed log level
func (c *Config) GetLogLevel() slogging.LogLevel {
	return slogging.ParseLogLevel(c.Logging.Level)
}

// ListenAddress returns the interface:port the HTTP server binds to
func (c *Config) ListenAddress() string {
	return c.Server.Interface + ":" + c.Server.Port
}

// RedirectURL returns the OAuth2 callback URL for a registration id
func (c *Config) RedirectURL(registrationID string) string {
	return strings.TrimRight(c.Server.BaseURL, "/") + "/login/oauth2/code/" + url.PathEscape(registrationID)
}
