package registration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ericfitz/oauthreg/internal/slogging"
)

// clientCredentials is the JSON payload stored in a config map entry
type clientCredentials struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// Resolver builds client registrations on demand from a provider store and a
// secret store. It keeps no state between calls and is safe for concurrent use.
type Resolver struct {
	providers ProviderStore
	secrets   SecretStore
}

// NewResolver creates a resolver over the given stores
func NewResolver(providers ProviderStore, secrets SecretStore) *Resolver {
	return &Resolver{providers: providers, secrets: secrets}
}

// FindByRegistrationID resolves the registration for the provider named registrationID.
// Unknown or disabled providers yield *ProviderNotFoundError; an unusable
// credential location or payload yields *MalformedConfigurationError. Store
// failures are returned wrapped.
func (r *Resolver) FindByRegistrationID(ctx context.Context, registrationID string) (*ClientRegistration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	provider, err := r.providers.FetchAuthProvider(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch auth provider %s: %w", registrationID, err)
	}
	if provider == nil || !provider.Spec.Enabled {
		return nil, &ProviderNotFoundError{RegistrationID: registrationID}
	}

	ref, err := provider.Spec.SecretRef()
	if err != nil {
		return nil, malformed(registrationID, "invalid credential reference", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	configMap, err := r.secrets.FetchConfigMap(ctx, ref.ConfigMapName())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch config map %s for %s: %w", ref.ConfigMapName(), registrationID, err)
	}
	if configMap == nil {
		return nil, malformed(registrationID, fmt.Sprintf("config map %s not found", ref.ConfigMapName()), nil)
	}

	payload, ok := configMap.Value(ref.EntryKey())
	if !ok {
		return nil, malformed(registrationID,
			fmt.Sprintf("config map %s has no entry %s", ref.ConfigMapName(), ref.EntryKey()), nil)
	}

	var creds clientCredentials
	if err := json.Unmarshal([]byte(payload), &creds); err != nil {
		return nil, malformed(registrationID, "credential payload is not valid JSON", err)
	}
	if creds.ClientID == "" {
		return nil, malformed(registrationID, "credential payload has no clientId", nil)
	}

	slogging.Get().DebugCtx(ctx, "Resolved client registration",
		slog.String("registration_id", registrationID),
		slog.String("config_map", ref.ConfigMapName()),
		slog.String("client_id", creds.ClientID),
	)

	return newClientRegistration(registrationID, provider, creds), nil
}

func newClientRegistration(registrationID string, provider *AuthProvider, creds clientCredentials) *ClientRegistration {
	endpoints := provider.Spec.ClientRegistration
	var scopes []string
	if len(endpoints.Scopes) > 0 {
		scopes = append([]string(nil), endpoints.Scopes...)
	}
	return &ClientRegistration{
		registrationID:    registrationID,
		clientID:          creds.ClientID,
		clientSecret:      creds.ClientSecret,
		clientName:        provider.Spec.DisplayName,
		authorizationURI:  endpoints.AuthorizationURI,
		tokenURI:          endpoints.TokenURI,
		userInfoURI:       endpoints.UserInfoURI,
		jwkSetURI:         endpoints.JWKSetURI,
		issuerURI:         endpoints.IssuerURI,
		userNameAttribute: endpoints.UserNameAttribute,
		scopes:            scopes,
	}
}
