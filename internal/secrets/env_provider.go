package secrets

import (
	"context"
	"os"
	"strings"

	"github.com/ericfitz/oauthreg/internal/slogging"
)

// DefaultEnvPrefix is used when no prefix is configured
const DefaultEnvPrefix = "OAUTHREG_CONFIGMAP_"

// EnvProvider reads config maps from environment variables.
// Config map "oauth2-settings" maps to OAUTHREG_CONFIGMAP_OAUTH2_SETTINGS.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates a new environment variable secrets provider
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &EnvProvider{prefix: prefix}
}

// GetConfigMap decodes the JSON object held in the config map's variable
func (p *EnvProvider) GetConfigMap(_ context.Context, name string) (map[string]string, error) {
	logger := slogging.Get()

	envKey := p.envKey(name)
	value, ok := os.LookupEnv(envKey)
	if !ok || value == "" {
		logger.Debug("Config map not found in environment: %s", envKey)
		return nil, nil
	}

	return decodeConfigMap(name, []byte(value))
}

// Name returns the provider name
func (p *EnvProvider) Name() string {
	return "env"
}

// Close is a no-op for the environment provider
func (p *EnvProvider) Close() error {
	return nil
}

// envKey upper-cases name and replaces anything outside [A-Z0-9] with underscores
func (p *EnvProvider) envKey(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
	return p.prefix + mapped
}
