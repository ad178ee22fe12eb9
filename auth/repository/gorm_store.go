package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfitz/oauthreg/api/models"
	"github.com/ericfitz/oauthreg/auth/registration"
	"github.com/ericfitz/oauthreg/internal/crypto"
	"github.com/ericfitz/oauthreg/internal/slogging"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store using GORM
type GormStore struct {
	db        *gorm.DB
	encryptor *crypto.ValueEncryptor
	logger    *slogging.Logger
}

// GormStoreOption configures a GormStore
type GormStoreOption func(*GormStore)

// WithEncryptor seals config map values at rest. A nil encryptor stores plaintext.
func WithEncryptor(enc *crypto.ValueEncryptor) GormStoreOption {
	return func(s *GormStore) {
		s.encryptor = enc
	}
}

// NewGormStore creates a new GORM-backed store
func NewGormStore(db *gorm.DB, opts ...GormStoreOption) *GormStore {
	s := &GormStore{
		db:     db,
		logger: slogging.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAuthProvider retrieves a provider by name, or nil when absent
func (s *GormStore) FetchAuthProvider(ctx context.Context, name string) (*registration.AuthProvider, error) {
	var m models.AuthProvider
	result := s.db.WithContext(ctx).Where("name = ?", name).First(&m)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get auth provider: %w", result.Error)
	}
	return convertModelToAuthProvider(&m), nil
}

// ListAuthProviders returns every stored provider ordered by name
func (s *GormStore) ListAuthProviders(ctx context.Context) ([]registration.AuthProvider, error) {
	var rows []models.AuthProvider
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list auth providers: %w", err)
	}

	providers := make([]registration.AuthProvider, 0, len(rows))
	for i := range rows {
		providers = append(providers, *convertModelToAuthProvider(&rows[i]))
	}
	return providers, nil
}

// SaveAuthProvider upserts a provider by name
func (s *GormStore) SaveAuthProvider(ctx context.Context, provider *registration.AuthProvider) error {
	if provider == nil {
		return ErrInvalidName
	}
	if err := validateName(provider.Name); err != nil {
		return err
	}

	m := convertAuthProviderToModel(provider)
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(m)
	if result.Error != nil {
		return fmt.Errorf("failed to save auth provider: %w", result.Error)
	}

	s.logger.Debug("Saved auth provider %s", provider.Name)
	return nil
}

// DeleteAuthProvider removes a provider by name
func (s *GormStore) DeleteAuthProvider(ctx context.Context, name string) error {
	result := s.db.WithContext(ctx).Where("name = ?", name).Delete(&models.AuthProvider{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete auth provider: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAuthProviderNotFound
	}
	return nil
}

// FetchConfigMap retrieves a config map by name, or nil when absent
func (s *GormStore) FetchConfigMap(ctx context.Context, name string) (*registration.ConfigMap, error) {
	var m models.ConfigMap
	result := s.db.WithContext(ctx).Where("name = ?", name).First(&m)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get config map: %w", result.Error)
	}

	data, err := s.openData(m.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt config map %s: %w", name, err)
	}
	m.Data = data
	return convertModelToConfigMap(&m), nil
}

// SaveConfigMap upserts a config map by name
func (s *GormStore) SaveConfigMap(ctx context.Context, configMap *registration.ConfigMap) error {
	if configMap == nil {
		return ErrInvalidName
	}
	if err := validateName(configMap.Name); err != nil {
		return err
	}

	data, err := s.sealData(configMap.Data)
	if err != nil {
		return fmt.Errorf("failed to encrypt config map %s: %w", configMap.Name, err)
	}

	m := &models.ConfigMap{Name: configMap.Name, Data: data}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "modified_at"}),
	}).Create(m)
	if result.Error != nil {
		return fmt.Errorf("failed to save config map: %w", result.Error)
	}

	s.logger.Debug("Saved config map %s with %d entries", configMap.Name, len(configMap.Data))
	return nil
}

// DeleteConfigMap removes a config map by name
func (s *GormStore) DeleteConfigMap(ctx context.Context, name string) error {
	result := s.db.WithContext(ctx).Where("name = ?", name).Delete(&models.ConfigMap{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete config map: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConfigMapNotFound
	}
	return nil
}

// RotateConfigMapEncryption re-seals every config map value that is plaintext
// or sealed under an older key, returning the number of config maps rewritten.
func (s *GormStore) RotateConfigMapEncryption(ctx context.Context) (int, error) {
	if !s.encryptor.Enabled() {
		return 0, nil
	}

	var rows []models.ConfigMap
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("failed to list config maps: %w", err)
	}

	rotated := 0
	for i := range rows {
		if !s.needsRotation(rows[i].Data) {
			continue
		}
		data, err := s.openData(rows[i].Data)
		if err != nil {
			return rotated, fmt.Errorf("failed to decrypt config map %s: %w", rows[i].Name, err)
		}
		if err := s.SaveConfigMap(ctx, &registration.ConfigMap{Name: rows[i].Name, Data: data}); err != nil {
			return rotated, err
		}
		rotated++
	}

	s.logger.Info("Re-encrypted %d of %d config maps", rotated, len(rows))
	return rotated, nil
}

func (s *GormStore) needsRotation(data models.StringMap) bool {
	for _, v := range data {
		if s.encryptor.NeedsRotation(v) {
			return true
		}
	}
	return false
}

func (s *GormStore) sealData(data map[string]string) (models.StringMap, error) {
	if !s.encryptor.Enabled() || data == nil {
		return models.StringMap(data), nil
	}
	sealed := make(models.StringMap, len(data))
	for k, v := range data {
		enc, err := s.encryptor.Encrypt(v)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", k, err)
		}
		sealed[k] = enc
	}
	return sealed, nil
}

func (s *GormStore) openData(data models.StringMap) (models.StringMap, error) {
	opened := make(models.StringMap, len(data))
	for k, v := range data {
		plain, err := s.encryptor.Decrypt(v)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", k, err)
		}
		opened[k] = plain
	}
	return opened, nil
}
