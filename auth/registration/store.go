package registration

import "context"

// ProviderStore fetches auth provider definitions by name.
// Implementations return (nil, nil) when the provider does not exist.
type ProviderStore interface {
	FetchAuthProvider(ctx context.Context, name string) (*AuthProvider, error)
}

// SecretStore fetches credential config maps by name.
// Implementations return (nil, nil) when the config map does not exist.
type SecretStore interface {
	FetchConfigMap(ctx context.Context, name string) (*ConfigMap, error)
}

// ProviderLister lists every stored auth provider, enabled or not
type ProviderLister interface {
	ListAuthProviders(ctx context.Context) ([]AuthProvider, error)
}

// Repository resolves client registrations by provider id
type Repository interface {
	FindByRegistrationID(ctx context.Context, registrationID string) (*ClientRegistration, error)
}
