// Package secrets reads credential config maps from external secret managers.
// Each config map is stored as one secret whose value is a JSON object of string entries.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ericfitz/oauthreg/internal/config"
	"github.com/ericfitz/oauthreg/internal/slogging"
)

// Common errors
var (
	ErrInvalidConfig = errors.New("invalid secrets provider configuration")
	ErrInvalidSecret = errors.New("secret is not a JSON object of strings")
)

// Provider defines the interface for secrets providers
type Provider interface {
	// GetConfigMap returns the entries of the named config map.
	// A missing secret is reported as (nil, nil).
	GetConfigMap(ctx context.Context, name string) (map[string]string, error)

	// Name returns the provider's identifier (e.g., "env", "aws", "oci")
	Name() string

	// Close releases any resources held by the provider
	Close() error
}

// NewProvider creates the secrets provider selected by cfg.
// The "store" provider keeps config maps in the primary store, so no provider is returned for it.
func NewProvider(ctx context.Context, cfg *config.SecretsConfig) (Provider, error) {
	logger := slogging.Get()

	if cfg == nil || cfg.Provider == "" || cfg.Provider == config.SecretsProviderStore {
		return nil, nil
	}

	logger.Info("Initializing secrets provider: %s", cfg.Provider)

	switch cfg.Provider {
	case config.SecretsProviderEnv:
		return NewEnvProvider(cfg.EnvPrefix), nil

	case config.SecretsProviderAWS:
		if cfg.AWSRegion == "" {
			return nil, fmt.Errorf("%w: AWS secrets provider requires a region", ErrInvalidConfig)
		}
		return NewAWSProvider(ctx, cfg.AWSRegion, cfg.AWSSecretPrefix)

	case config.SecretsProviderOCI:
		if cfg.OCICompartmentID == "" || cfg.OCIVaultID == "" {
			return nil, fmt.Errorf("%w: OCI secrets provider requires compartment ID and vault ID", ErrInvalidConfig)
		}
		return NewOCIProvider(cfg.OCICompartmentID, cfg.OCIVaultID)

	default:
		return nil, fmt.Errorf("%w: unknown provider type: %s", ErrInvalidConfig, cfg.Provider)
	}
}

// decodeConfigMap parses a secret value into config map entries
func decodeConfigMap(name string, raw []byte) (map[string]string, error) {
	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSecret, name, err)
	}
	if data == nil {
		data = map[string]string{}
	}
	return data, nil
}

// configMapCache holds decoded config maps by name until invalidated
type configMapCache struct {
	mu      sync.RWMutex
	entries map[string]map[string]string
}

func newConfigMapCache() *configMapCache {
	return &configMapCache{entries: make(map[string]map[string]string)}
}

func (c *configMapCache) get(name string) (map[string]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	return cloneData(data), true
}

func (c *configMapCache) put(name string, data map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = cloneData(data)
}

func (c *configMapCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]map[string]string)
}

func cloneData(data map[string]string) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
