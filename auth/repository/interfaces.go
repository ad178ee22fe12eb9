// Package repository provides the auth provider and config map stores behind
// the registration resolver. Implementations cover GORM databases, process
// memory, external secret managers, and a Redis read-through cache.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfitz/oauthreg/auth/registration"
	"github.com/ericfitz/oauthreg/internal/unicodecheck"
)

// Common errors returned by repositories
var (
	ErrAuthProviderNotFound = errors.New("auth provider not found")
	ErrConfigMapNotFound    = errors.New("config map not found")
	ErrInvalidName          = errors.New("invalid name")
)

// validateName rejects names that cannot safely key a URL, cache entry or secret path
func validateName(name string) error {
	if err := unicodecheck.ValidateIdentifier(name); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidName, unicodecheck.SanitizeForLogging(name), err)
	}
	return nil
}

// AuthProviderStore reads and writes auth provider definitions
type AuthProviderStore interface {
	registration.ProviderStore
	registration.ProviderLister

	// SaveAuthProvider creates or replaces the provider with the same name
	SaveAuthProvider(ctx context.Context, provider *registration.AuthProvider) error
	// DeleteAuthProvider returns ErrAuthProviderNotFound when nothing was deleted
	DeleteAuthProvider(ctx context.Context, name string) error
}

// ConfigMapStore reads and writes credential config maps
type ConfigMapStore interface {
	registration.SecretStore

	// SaveConfigMap creates or replaces the config map with the same name
	SaveConfigMap(ctx context.Context, configMap *registration.ConfigMap) error
	// DeleteConfigMap returns ErrConfigMapNotFound when nothing was deleted
	DeleteConfigMap(ctx context.Context, name string) error
}

// Store is the full read/write surface of a backend holding both kinds
type Store interface {
	AuthProviderStore
	ConfigMapStore
}

// ConfigMapSource reads a named string map from an external secret manager
type ConfigMapSource interface {
	GetConfigMap(ctx context.Context, name string) (map[string]string, error)
}
