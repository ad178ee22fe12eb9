package repository

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/ericfitz/oauthreg/auth/registration"
)

// MemoryStore implements Store in process memory.
// Values are copied on the way in and out.
type MemoryStore struct {
	mu         sync.RWMutex
	providers  map[string]*registration.AuthProvider
	configMaps map[string]*registration.ConfigMap
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		providers:  make(map[string]*registration.AuthProvider),
		configMaps: make(map[string]*registration.ConfigMap),
	}
}

// FetchAuthProvider returns a copy of the named provider, or nil when absent
func (s *MemoryStore) FetchAuthProvider(ctx context.Context, name string) (*registration.AuthProvider, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAuthProvider(s.providers[name]), nil
}

// ListAuthProviders returns copies of every provider ordered by name
func (s *MemoryStore) ListAuthProviders(ctx context.Context) ([]registration.AuthProvider, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]registration.AuthProvider, 0, len(s.providers))
	for _, p := range s.providers {
		out = append(out, *cloneAuthProvider(p))
	}
	slices.SortFunc(out, func(a, b registration.AuthProvider) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

// SaveAuthProvider stores a copy of provider
func (s *MemoryStore) SaveAuthProvider(ctx context.Context, provider *registration.AuthProvider) error {
	if provider == nil {
		return ErrInvalidName
	}
	if err := validateName(provider.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[provider.Name] = cloneAuthProvider(provider)
	return nil
}

// DeleteAuthProvider removes the named provider
func (s *MemoryStore) DeleteAuthProvider(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.providers[name]; !ok {
		return ErrAuthProviderNotFound
	}
	delete(s.providers, name)
	return nil
}

// FetchConfigMap returns a copy of the named config map, or nil when absent
func (s *MemoryStore) FetchConfigMap(ctx context.Context, name string) (*registration.ConfigMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneConfigMap(s.configMaps[name]), nil
}

// SaveConfigMap stores a copy of configMap
func (s *MemoryStore) SaveConfigMap(ctx context.Context, configMap *registration.ConfigMap) error {
	if configMap == nil {
		return ErrInvalidName
	}
	if err := validateName(configMap.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configMaps[configMap.Name] = cloneConfigMap(configMap)
	return nil
}

// DeleteConfigMap removes the named config map
func (s *MemoryStore) DeleteConfigMap(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configMaps[name]; !ok {
		return ErrConfigMapNotFound
	}
	delete(s.configMaps, name)
	return nil
}
