package config

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ericfitz/oauthreg/auth/registration"
	"github.com/ericfitz/oauthreg/internal/slogging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Default Config Tests
// =============================================================================

func TestGetDefaultConfig(t *testing.T) {
	config := getDefaultConfig()

	assert.NotNil(t, config)

	// Server defaults
	assert.Equal(t, "8080", config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Interface)
	assert.Equal(t, "http://localhost:8080", config.Server.BaseURL)
	assert.Equal(t, 5*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, config.Server.WriteTimeout)
	assert.Equal(t, 60*time.Second, config.Server.IdleTimeout)

	// Store defaults
	assert.Equal(t, StoreBackendMemory, config.Store.Backend)
	assert.Equal(t, "sqlite", config.Database.Type)
	assert.Equal(t, "oauthreg.db", config.Database.SQLitePath)

	// Redis defaults
	assert.False(t, config.Redis.Enabled)
	assert.Equal(t, "6379", config.Redis.Port)
	assert.Equal(t, 5*time.Minute, config.Redis.CacheTTL)

	// Secrets and auth defaults
	assert.Equal(t, SecretsProviderStore, config.Secrets.Provider)
	assert.Empty(t, config.Auth.StateSecret)
	assert.Equal(t, 10*time.Minute, config.Auth.StateTTL)

	// Logging defaults
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "logs", config.Logging.LogDir)

	// Telemetry defaults
	assert.False(t, config.Telemetry.Enabled)
	assert.Equal(t, "oauthreg", config.Telemetry.ServiceName)
	assert.InDelta(t, 1.0, config.Telemetry.TraceSampleRate, 0.0001)
}

// =============================================================================
// Load Tests
// =============================================================================

const testYAML = `
server:
  port: "9090"
  base_url: https://login.example.com
auth:
  state_secret: yaml-secret
logging:
  level: debug
seed:
  auth_providers:
    - name: github
      spec:
        display_name: GitHub
        enabled: true
        client_registration:
          authorization_uri: https://github.com/login/oauth/authorize
          token_uri: https://github.com/login/oauth/access_token
        setting_ref:
          name: oauth2
          group: github
        config_map_ref:
          name: oauth2-settings
  config_maps:
    - name: oauth2-settings
      data:
        github: '{"clientId":"my-client-id","clientSecret":"my-client-secret"}'
`

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_FromYAML(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "https://login.example.com", cfg.Server.BaseURL)
	assert.Equal(t, "yaml-secret", cfg.Auth.StateSecret)
	assert.Equal(t, slogging.LogLevelDebug, cfg.GetLogLevel())

	// Unset values keep their defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Interface)

	require.Len(t, cfg.Seed.AuthProviders, 1)
	provider := cfg.Seed.AuthProviders[0]
	assert.Equal(t, "github", provider.Name)
	require.NotNil(t, provider.Spec.SettingRef)
	assert.Equal(t, "github", provider.Spec.SettingRef.Group)

	require.Len(t, cfg.Seed.ConfigMaps, 1)
	assert.Contains(t, cfg.Seed.ConfigMaps[0].Data["github"], "my-client-id")
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("OAUTHREG_AUTH_STATE_SECRET", "env-secret")
	t.Setenv("OAUTHREG_REDIS_CACHE_TTL", "30s")
	t.Setenv("TELEMETRY_TRACE_SAMPLE_RATE", "0.25")

	cfg, err := Load(writeConfigFile(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "env-secret", cfg.Auth.StateSecret)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.InDelta(t, 0.25, cfg.Telemetry.TraceSampleRate, 0.0001)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config from YAML")
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfigFile(t, "server: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML config")
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	t.Setenv("OAUTHREG_REDIS_ENABLED", "maybe")

	_, err := Load(writeConfigFile(t, testYAML))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_ENABLED")
}

// =============================================================================
// setFieldFromString Tests
// =============================================================================

func TestSetFieldFromString(t *testing.T) {
	type target struct {
		S  string
		B  bool
		I  int
		D  time.Duration
		F  float64
		SS []string
		M  map[string]string
	}
	var v target
	rv := reflect.ValueOf(&v).Elem()

	require.NoError(t, setFieldFromString(rv.FieldByName("S"), "value"))
	require.NoError(t, setFieldFromString(rv.FieldByName("B"), "true"))
	require.NoError(t, setFieldFromString(rv.FieldByName("I"), "42"))
	require.NoError(t, setFieldFromString(rv.FieldByName("D"), "1m30s"))
	require.NoError(t, setFieldFromString(rv.FieldByName("F"), "0.5"))
	require.NoError(t, setFieldFromString(rv.FieldByName("SS"), "a, b,,c"))

	assert.Equal(t, "value", v.S)
	assert.True(t, v.B)
	assert.Equal(t, 42, v.I)
	assert.Equal(t, 90*time.Second, v.D)
	assert.InDelta(t, 0.5, v.F, 0.0001)
	assert.Equal(t, []string{"a", "b", "c"}, v.SS)

	assert.Error(t, setFieldFromString(rv.FieldByName("B"), "nope"))
	assert.Error(t, setFieldFromString(rv.FieldByName("I"), "x"))
	assert.Error(t, setFieldFromString(rv.FieldByName("D"), "forever"))
	assert.Error(t, setFieldFromString(rv.FieldByName("M"), "a=b"))
}

// =============================================================================
// Validation Tests
// =============================================================================

func seedProvider(name string) registration.AuthProvider {
	return registration.AuthProvider{Name: name, Spec: registration.AuthProviderSpec{Enabled: true}}
}

func validConfig() *Config {
	cfg := getDefaultConfig()
	cfg.Auth.StateSecret = "test-secret"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server port is required"},
		{"relative base url", func(c *Config) { c.Server.BaseURL = "/login" }, "absolute url"},
		{"unknown store backend", func(c *Config) { c.Store.Backend = "etcd" }, "unsupported store backend"},
		{"database sqlite without path", func(c *Config) {
			c.Store.Backend = StoreBackendDatabase
			c.Database.SQLitePath = ""
		}, "sqlite path is required"},
		{"database postgres without host", func(c *Config) {
			c.Store.Backend = StoreBackendDatabase
			c.Database.Type = "postgres"
			c.Database.Host = ""
		}, "database host is required"},
		{"database encryption key not hex", func(c *Config) {
			c.Store.Backend = StoreBackendDatabase
			c.Database.EncryptionKey = "not-a-key"
		}, "invalid database encryption key"},
		{"database previous key without current key", func(c *Config) {
			c.Store.Backend = StoreBackendDatabase
			c.Database.PreviousEncryptionKey = strings.Repeat("ab", 32)
		}, "requires an encryption key"},
		{"database encryption keys", func(c *Config) {
			c.Store.Backend = StoreBackendDatabase
			c.Database.EncryptionKey = strings.Repeat("cd", 32)
			c.Database.PreviousEncryptionKey = strings.Repeat("ab", 32)
		}, ""},
		{"database unknown type", func(c *Config) {
			c.Store.Backend = StoreBackendDatabase
			c.Database.Type = "oracle"
		}, "unsupported database type"},
		{"redis without host", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Host = ""
		}, "redis host is required"},
		{"redis zero ttl", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.CacheTTL = 0
		}, "redis cache ttl"},
		{"aws without region", func(c *Config) { c.Secrets.Provider = SecretsProviderAWS }, "aws region is required"},
		{"oci without vault", func(c *Config) {
			c.Secrets.Provider = SecretsProviderOCI
			c.Secrets.OCICompartmentID = "ocid1.compartment"
		}, "oci compartment id and vault id"},
		{"unknown secrets provider", func(c *Config) { c.Secrets.Provider = "vault" }, "unsupported secrets provider"},
		{"missing state secret", func(c *Config) { c.Auth.StateSecret = "" }, "auth state secret is required"},
		{"bad sample rate", func(c *Config) { c.Telemetry.TraceSampleRate = 2 }, "trace sample rate"},
		{"duplicate seed provider", func(c *Config) {
			c.Seed.AuthProviders = append(c.Seed.AuthProviders,
				seedProvider("github"), seedProvider("github"))
		}, "duplicate seed auth provider: github"},
		{"seed provider name with whitespace", func(c *Config) {
			c.Seed.AuthProviders = append(c.Seed.AuthProviders, seedProvider("git hub"))
		}, "seed auth provider name: invalid identifier: contains whitespace"},
		{"empty seed config map name", func(c *Config) {
			c.Seed.ConfigMaps = append(c.Seed.ConfigMaps, registration.ConfigMap{})
		}, "seed config map name: invalid identifier: empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// =============================================================================
// Helper Method Tests
// =============================================================================

func TestConfig_Addresses(t *testing.T) {
	cfg := validConfig()
	cfg.Server.BaseURL = "https://login.example.com/"

	assert.Equal(t, "0.0.0.0:8080", cfg.ListenAddress())
	assert.Equal(t, "https://login.example.com/login/oauth2/code/github", cfg.RedirectURL("github"))
}

func TestGenerateExampleConfig(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, GenerateExampleConfig(&buf))

	var cfg Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &cfg))
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "change-me", cfg.Auth.StateSecret)
}
