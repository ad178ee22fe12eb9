package secrets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/ericfitz/oauthreg/internal/slogging"
	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/secrets"
)

// secretBundleGetter is the subset of the OCI secrets client used here
type secretBundleGetter interface {
	GetSecretBundleByName(ctx context.Context, request secrets.GetSecretBundleByNameRequest) (secrets.GetSecretBundleByNameResponse, error)
}

// OCIProvider reads config maps from an OCI Vault.
// Each config map is a vault secret of the same name holding a base64 JSON object.
type OCIProvider struct {
	client        secretBundleGetter
	compartmentID string
	vaultID       string
	cache         *configMapCache
}

// NewOCIProvider creates a new OCI Vault secrets provider
func NewOCIProvider(compartmentID, vaultID string) (*OCIProvider, error) {
	logger := slogging.Get()

	// ~/.oci/config or instance principal
	client, err := secrets.NewSecretsClientWithConfigurationProvider(common.DefaultConfigProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create OCI secrets client: %w", err)
	}

	logger.Info("OCI Vault secrets provider initialized for vault: %s in compartment: %s", vaultID, compartmentID)

	return newOCIProviderWithClient(client, compartmentID, vaultID), nil
}

func newOCIProviderWithClient(client secretBundleGetter, compartmentID, vaultID string) *OCIProvider {
	return &OCIProvider{
		client:        client,
		compartmentID: compartmentID,
		vaultID:       vaultID,
		cache:         newConfigMapCache(),
	}
}

// GetConfigMap fetches and caches the vault secret backing the named config map
func (p *OCIProvider) GetConfigMap(ctx context.Context, name string) (map[string]string, error) {
	logger := slogging.Get()

	if data, ok := p.cache.get(name); ok {
		logger.Debug("OCI Vault cache hit for config map: %s", name)
		return data, nil
	}

	response, err := p.client.GetSecretBundleByName(ctx, secrets.GetSecretBundleByNameRequest{
		SecretName: common.String(name),
		VaultId:    common.String(p.vaultID),
	})
	if err != nil {
		var serviceErr common.ServiceError
		if errors.As(err, &serviceErr) && serviceErr.GetHTTPStatusCode() == http.StatusNotFound {
			logger.Debug("OCI Vault secret %s not found", name)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get OCI secret bundle %s: %w", name, err)
	}

	content, ok := response.SecretBundleContent.(secrets.Base64SecretBundleContentDetails)
	if !ok || content.Content == nil {
		return nil, fmt.Errorf("unexpected secret content type for %s", name)
	}

	decoded, err := base64.StdEncoding.DecodeString(*content.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode secret content for %s: %w", name, err)
	}

	data, err := decodeConfigMap(name, decoded)
	if err != nil {
		return nil, err
	}

	p.cache.put(name, data)
	logger.Info("Loaded config map %s with %d entries from OCI Vault", name, len(data))
	return data, nil
}

// Name returns the provider name
func (p *OCIProvider) Name() string {
	return "oci"
}

// Close releases resources
func (p *OCIProvider) Close() error {
	// OCI SDK clients don't have explicit close methods
	return nil
}

// InvalidateCache clears the cached config maps
func (p *OCIProvider) InvalidateCache() {
	p.cache.clear()
}
