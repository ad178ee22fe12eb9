package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ericfitz/oauthreg/auth/db"
	"github.com/ericfitz/oauthreg/auth/repository"
	"github.com/ericfitz/oauthreg/internal/config"
	"github.com/ericfitz/oauthreg/internal/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
auth:
  state_secret: test-secret
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

func loadTestConfig(t *testing.T, extra string) *config.Config {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML+extra), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestBuildComponents_MemoryBackend(t *testing.T) {
	cfg := loadTestConfig(t, "")

	comps, err := buildComponents(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = comps.Close() })

	assert.IsType(t, &repository.MemoryStore{}, comps.store)
	assert.Empty(t, comps.healthChecks)

	reg, err := comps.resolver.FindByRegistrationID(context.Background(), "github")
	require.NoError(t, err)
	assert.Equal(t, "my-client-id", reg.ClientID())
}

func TestBuildComponents_DatabaseWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)

	cfg := loadTestConfig(t, `
store:
  backend: database
database:
  type: sqlite
  sqlite_path: `+filepath.Join(t.TempDir(), "oauthreg.db")+`
  encryption_key: `+strings.Repeat("0f", 32)+`
redis:
  enabled: true
  host: `+host+`
  port: "`+port+`"
`)

	comps, err := buildComponents(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = comps.Close() })

	assert.IsType(t, &repository.CachedStore{}, comps.store)
	assert.Contains(t, comps.healthChecks, "database")
	assert.Contains(t, comps.healthChecks, "redis")

	// the database store is not seeded at startup
	_, err = comps.resolver.FindByRegistrationID(context.Background(), "github")
	assert.EqualError(t, err, "Unsupported OAuth2 provider: github")

	_, err = repository.Seed(context.Background(), comps.store, cfg.Seed.AuthProviders, cfg.Seed.ConfigMaps)
	require.NoError(t, err)
	reg, err := comps.resolver.FindByRegistrationID(context.Background(), "github")
	require.NoError(t, err)
	assert.Equal(t, "my-client-secret", reg.ClientSecret())

	raw, err := mr.Get(db.NewRedisKeyBuilder().CacheConfigMapKey("oauth2-settings"))
	require.NoError(t, err)
	assert.NotContains(t, raw, "my-client-secret")
	assert.Contains(t, raw, "ENC:v1:")
}

func TestBuildComponents_EnvSecretsProvider(t *testing.T) {
	t.Setenv("TESTCM_OAUTH2_SETTINGS", `{"github":"{\"clientId\":\"env-client\"}"}`)
	cfg := loadTestConfig(t, `
secrets:
  provider: env
  env_prefix: TESTCM_
`)

	comps, err := buildComponents(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = comps.Close() })

	reg, err := comps.resolver.FindByRegistrationID(context.Background(), "github")
	require.NoError(t, err)
	assert.Equal(t, "env-client", reg.ClientID())
	assert.Empty(t, reg.ClientSecret())
}

func TestNewAPIServer_EndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := loadTestConfig(t, "")

	comps, err := buildComponents(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = comps.Close() })

	svc, err := telemetry.NewService(context.Background(), telemetry.NewConfig(cfg.Telemetry, true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	server, err := newAPIServer(cfg, comps, svc)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth2/authorization/github", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "my-client-id", location.Query().Get("client_id"))
	assert.Equal(t, "http://localhost:8080/login/oauth2/code/github", location.Query().Get("redirect_uri"))

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `outcome="found"`)
}
