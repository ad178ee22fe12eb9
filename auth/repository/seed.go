package repository

import (
	"context"
	"fmt"

	"github.com/ericfitz/oauthreg/auth/registration"
	"github.com/ericfitz/oauthreg/internal/slogging"
)

// SeedResult counts the records written by Seed
type SeedResult struct {
	AuthProviders int
	ConfigMaps    int
}

// Seed upserts the given config maps and providers into store.
// Config maps go first so a provider is never visible before its credentials.
func Seed(ctx context.Context, store Store, providers []registration.AuthProvider, configMaps []registration.ConfigMap) (SeedResult, error) {
	logger := slogging.Get()
	var result SeedResult

	for i := range configMaps {
		if err := store.SaveConfigMap(ctx, &configMaps[i]); err != nil {
			return result, fmt.Errorf("failed to seed config map %s: %w", configMaps[i].Name, err)
		}
		result.ConfigMaps++
	}

	for i := range providers {
		if _, err := providers[i].Spec.SecretRef(); err != nil {
			logger.Warn("Seeding auth provider %s with an unusable credential reference: %v", providers[i].Name, err)
		}
		if err := store.SaveAuthProvider(ctx, &providers[i]); err != nil {
			return result, fmt.Errorf("failed to seed auth provider %s: %w", providers[i].Name, err)
		}
		result.AuthProviders++
	}

	logger.Info("Seeded %d auth providers and %d config maps", result.AuthProviders, result.ConfigMaps)
	return result, nil
}
