package repository

import (
	"context"
	"fmt"

	"github.com/ericfitz/oauthreg/auth/registration"
)

// SecretsStore adapts an external secret manager to registration.SecretStore.
// The source reports a missing container as (nil, nil).
type SecretsStore struct {
	source ConfigMapSource
}

// NewSecretsStore creates a secret store reading config maps from source
func NewSecretsStore(source ConfigMapSource) *SecretsStore {
	return &SecretsStore{source: source}
}

// FetchConfigMap implements registration.SecretStore
func (s *SecretsStore) FetchConfigMap(ctx context.Context, name string) (*registration.ConfigMap, error) {
	data, err := s.source.GetConfigMap(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read config map %s from secrets provider: %w", name, err)
	}
	if data == nil {
		return nil, nil
	}
	return &registration.ConfigMap{Name: name, Data: data}, nil
}
