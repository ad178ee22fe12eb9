package repository

import (
	"context"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ericfitz/oauthreg/api/models"
	"github.com/ericfitz/oauthreg/auth/db"
	"github.com/ericfitz/oauthreg/auth/registration"
	"github.com/ericfitz/oauthreg/internal/crypto"
	"github.com/ericfitz/oauthreg/internal/unicodecheck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func githubProvider() *registration.AuthProvider {
	return &registration.AuthProvider{
		Name: "github",
		Spec: registration.AuthProviderSpec{
			DisplayName: "GitHub",
			Description: "GitHub login",
			Enabled:     true,
			ClientRegistration: registration.ProviderEndpoints{
				AuthorizationURI:  "https://github.com/login/oauth/authorize",
				TokenURI:          "https://github.com/login/oauth/access_token",
				UserInfoURI:       "https://api.github.com/user",
				Scopes:            []string{"read:user", "user:email"},
				UserNameAttribute: "id",
			},
			SettingRef:   &registration.SettingRef{Name: "oauth2", Group: "github"},
			ConfigMapRef: &registration.ConfigMapRef{Name: "oauth2-settings"},
		},
	}
}

func giteaProvider() *registration.AuthProvider {
	return &registration.AuthProvider{
		Name: "gitea",
		Spec: registration.AuthProviderSpec{
			DisplayName: "Gitea",
			Enabled:     false,
			ClientRegistration: registration.ProviderEndpoints{
				AuthorizationURI: "https://gitea.example.com/login/oauth/authorize",
				TokenURI:         "https://gitea.example.com/login/oauth/access_token",
			},
			ConfigMapKeyRef: &registration.ConfigMapKeyRef{Name: "gitea-oauth", Key: "credentials"},
		},
	}
}

const githubCredentials = `{"clientId":"my-client-id","clientSecret":"my-client-secret"}`

func TestGormStore_AuthProviderRoundTrip(t *testing.T) {
	tdb := db.MustCreateTestDB(t)
	store := NewGormStore(tdb.DB)
	ctx := context.Background()

	require.NoError(t, store.SaveAuthProvider(ctx, githubProvider()))
	require.NoError(t, store.SaveAuthProvider(ctx, giteaProvider()))

	got, err := store.FetchAuthProvider(ctx, "github")
	require.NoError(t, err)
	assert.Equal(t, githubProvider(), got)

	got, err = store.FetchAuthProvider(ctx, "gitea")
	require.NoError(t, err)
	assert.Equal(t, giteaProvider(), got)

	list, err := store.ListAuthProviders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "gitea", list[0].Name)
	assert.Equal(t, "github", list[1].Name)
}

func TestGormStore_FetchMissingReturnsNil(t *testing.T) {
	tdb := db.MustCreateTestDB(t)
	store := NewGormStore(tdb.DB)

	provider, err := store.FetchAuthProvider(context.Background(), "unknown")
	assert.NoError(t, err)
	assert.Nil(t, provider)

	configMap, err := store.FetchConfigMap(context.Background(), "unknown")
	assert.NoError(t, err)
	assert.Nil(t, configMap)
}

func TestGormStore_SaveReplacesExisting(t *testing.T) {
	tdb := db.MustCreateTestDB(t)
	store := NewGormStore(tdb.DB)
	ctx := context.Background()

	require.NoError(t, store.SaveAuthProvider(ctx, githubProvider()))

	updated := githubProvider()
	updated.Spec.Enabled = false
	updated.Spec.ClientRegistration.Scopes = []string{"repo"}
	require.NoError(t, store.SaveAuthProvider(ctx, updated))

	got, err := store.FetchAuthProvider(ctx, "github")
	require.NoError(t, err)
	assert.False(t, got.Spec.Enabled)
	assert.Equal(t, []string{"repo"}, got.Spec.ClientRegistration.Scopes)

	var count int64
	require.NoError(t, tdb.DB.Model(&models.AuthProvider{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGormStore_ConfigMaps(t *testing.T) {
	tdb := db.MustCreateTestDB(t)
	store := NewGormStore(tdb.DB)
	ctx := context.Background()

	cm := &registration.ConfigMap{Name: "oauth2-settings", Data: map[string]string{"github": githubCredentials}}
	require.NoError(t, store.SaveConfigMap(ctx, cm))

	got, err := store.FetchConfigMap(ctx, "oauth2-settings")
	require.NoError(t, err)
	assert.Equal(t, cm, got)

	cm.Data["google"] = `{"clientId":"g"}`
	require.NoError(t, store.SaveConfigMap(ctx, cm))
	got, err = store.FetchConfigMap(ctx, "oauth2-settings")
	require.NoError(t, err)
	assert.Len(t, got.Data, 2)

	require.NoError(t, store.DeleteConfigMap(ctx, "oauth2-settings"))
	assert.ErrorIs(t, store.DeleteConfigMap(ctx, "oauth2-settings"), ErrConfigMapNotFound)
}

func TestGormStore_Delete(t *testing.T) {
	tdb := db.MustCreateTestDB(t)
	store := NewGormStore(tdb.DB)
	ctx := context.Background()

	require.NoError(t, store.SaveAuthProvider(ctx, githubProvider()))
	require.NoError(t, store.DeleteAuthProvider(ctx, "github"))
	assert.ErrorIs(t, store.DeleteAuthProvider(ctx, "github"), ErrAuthProviderNotFound)
}

func TestGormStore_SaveValidatesName(t *testing.T) {
	tdb := db.MustCreateTestDB(t)
	store := NewGormStore(tdb.DB)
	ctx := context.Background()

	assert.ErrorIs(t, store.SaveAuthProvider(ctx, &registration.AuthProvider{}), ErrInvalidName)
	assert.ErrorIs(t, store.SaveConfigMap(ctx, nil), ErrInvalidName)

	err := store.SaveAuthProvider(ctx, &registration.AuthProvider{Name: "git\u202Ehub"})
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.ErrorIs(t, err, unicodecheck.ErrInvalidIdentifier)

	err = store.SaveConfigMap(ctx, &registration.ConfigMap{Name: "oauth2\nsettings"})
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.Contains(t, err.Error(), "oauth2[CTRL]settings")

	providers, err := store.ListAuthProviders(ctx)
	require.NoError(t, err)
	assert.Empty(t, providers)
}

func TestGormStore_ResolvesGithubRegistration(t *testing.T) {
	tdb := db.MustCreateTestDB(t)
	store := NewGormStore(tdb.DB)
	ctx := context.Background()

	require.NoError(t, store.SaveAuthProvider(ctx, githubProvider()))
	tdb.SeedConfigMap(t, "oauth2-settings", map[string]string{"github": githubCredentials})

	resolver := registration.NewResolver(store, store)
	reg, err := resolver.FindByRegistrationID(ctx, "github")
	require.NoError(t, err)
	assert.Equal(t, "github", reg.RegistrationID())
	assert.Equal(t, "my-client-id", reg.ClientID())
	assert.Equal(t, "my-client-secret", reg.ClientSecret())

	_, err = resolver.FindByRegistrationID(ctx, "gitlab")
	assert.EqualError(t, err, "Unsupported OAuth2 provider: gitlab")
}

func newTestEncryptor(t *testing.T, previous []byte, contextID int) (*crypto.ValueEncryptor, []byte) {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	enc, err := crypto.NewValueEncryptorFromKeys(key, previous, contextID)
	require.NoError(t, err)
	return enc, key
}

func TestGormStore_EncryptsConfigMapsAtRest(t *testing.T) {
	tdb := db.MustCreateTestDB(t)
	enc, _ := newTestEncryptor(t, nil, 1)
	store := NewGormStore(tdb.DB, WithEncryptor(enc))
	ctx := context.Background()

	require.NoError(t, store.SaveAuthProvider(ctx, githubProvider()))
	require.NoError(t, store.SaveConfigMap(ctx, &registration.ConfigMap{
		Name: "oauth2-settings",
		Data: map[string]string{"github": githubCredentials},
	}))

	var row models.ConfigMap
	require.NoError(t, tdb.DB.Where("name = ?", "oauth2-settings").First(&row).Error)
	assert.True(t, crypto.IsEncrypted(row.Data["github"]))
	assert.NotContains(t, row.Data["github"], "my-client-secret")

	reg, err := registration.NewResolver(store, store).FindByRegistrationID(ctx, "github")
	require.NoError(t, err)
	assert.Equal(t, "my-client-secret", reg.ClientSecret())

	// a store without the key cannot open the sealed row
	_, err = NewGormStore(tdb.DB).FetchConfigMap(ctx, "oauth2-settings")
	assert.ErrorIs(t, err, crypto.ErrDecryptionFailed)
}

func TestGormStore_ReadsPlaintextRowsWithEncryptor(t *testing.T) {
	tdb := db.MustCreateTestDB(t)
	tdb.SeedConfigMap(t, "oauth2-settings", map[string]string{"github": githubCredentials})
	enc, _ := newTestEncryptor(t, nil, 1)
	store := NewGormStore(tdb.DB, WithEncryptor(enc))

	cm, err := store.FetchConfigMap(context.Background(), "oauth2-settings")
	require.NoError(t, err)
	assert.Equal(t, githubCredentials, cm.Data["github"])
}

func TestGormStore_RotateConfigMapEncryption(t *testing.T) {
	tdb := db.MustCreateTestDB(t)
	ctx := context.Background()
	tdb.SeedConfigMap(t, "plain", map[string]string{"github": githubCredentials})

	oldEnc, oldKey := newTestEncryptor(t, nil, 1)
	require.NoError(t, NewGormStore(tdb.DB, WithEncryptor(oldEnc)).SaveConfigMap(ctx,
		&registration.ConfigMap{Name: "sealed", Data: map[string]string{"credentials": `{"clientId":"x"}`}}))

	newEnc, newKey := newTestEncryptor(t, oldKey, 2)
	store := NewGormStore(tdb.DB, WithEncryptor(newEnc))

	rotated, err := store.RotateConfigMapEncryption(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rotated)

	rotated, err = store.RotateConfigMapEncryption(ctx)
	require.NoError(t, err)
	assert.Zero(t, rotated)

	// rows now open with the new key alone
	newOnly, err := crypto.NewValueEncryptorFromKeys(newKey, nil, 2)
	require.NoError(t, err)
	rotatedStore := NewGormStore(tdb.DB, WithEncryptor(newOnly))
	for name, key := range map[string]string{"plain": "github", "sealed": "credentials"} {
		cm, err := rotatedStore.FetchConfigMap(ctx, name)
		require.NoError(t, err)
		assert.Contains(t, cm.Data[key], "clientId")
	}
}

func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gdb, mock
}

func TestGormStore_QueryErrorsPropagate(t *testing.T) {
	connErr := errors.New("connection reset by peer")

	t.Run("fetch auth provider", func(t *testing.T) {
		gdb, mock := newMockGormDB(t)
		mock.ExpectQuery("SELECT (.+) FROM `auth_providers`").WillReturnError(connErr)

		provider, err := NewGormStore(gdb).FetchAuthProvider(context.Background(), "github")
		assert.Nil(t, provider)
		assert.ErrorIs(t, err, connErr)
		assert.Contains(t, err.Error(), "failed to get auth provider")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fetch config map", func(t *testing.T) {
		gdb, mock := newMockGormDB(t)
		mock.ExpectQuery("SELECT (.+) FROM `config_maps`").WillReturnError(connErr)

		_, err := NewGormStore(gdb).FetchConfigMap(context.Background(), "oauth2-settings")
		assert.ErrorIs(t, err, connErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list auth providers", func(t *testing.T) {
		gdb, mock := newMockGormDB(t)
		mock.ExpectQuery("SELECT (.+) FROM `auth_providers`").WillReturnError(connErr)

		_, err := NewGormStore(gdb).ListAuthProviders(context.Background())
		assert.ErrorIs(t, err, connErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("resolver surfaces store failure", func(t *testing.T) {
		gdb, mock := newMockGormDB(t)
		mock.ExpectQuery("SELECT (.+) FROM `auth_providers`").WillReturnError(connErr)

		store := NewGormStore(gdb)
		_, err := registration.NewResolver(store, store).FindByRegistrationID(context.Background(), "github")
		assert.ErrorIs(t, err, connErr)
		assert.NotErrorIs(t, err, registration.ErrProviderNotFound)
	})
}
