package db

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ericfitz/oauthreg/api/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB holds a test database connection and cleanup function
type TestDB struct {
	DB      *gorm.DB
	Cleanup func()
}

// NewTestDB creates a new in-memory SQLite database for testing.
// It automatically migrates all models and returns a cleanup function.
func NewTestDB(t *testing.T) (*TestDB, error) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// a single connection keeps every query on the same in-memory database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return nil, err
	}

	return &TestDB{
		DB: db,
		Cleanup: func() {
			_ = sqlDB.Close()
		},
	}, nil
}

// MustCreateTestDB creates a test DB, failing the test on error.
func MustCreateTestDB(t *testing.T) *TestDB {
	t.Helper()

	tdb, err := NewTestDB(t)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(tdb.Cleanup)

	return tdb
}

// SeedAuthProvider inserts a provider row and returns it
func (tdb *TestDB) SeedAuthProvider(t *testing.T, p *models.AuthProvider) *models.AuthProvider {
	t.Helper()

	if err := tdb.DB.Create(p).Error; err != nil {
		t.Fatalf("failed to seed auth provider: %v", err)
	}
	return p
}

// SeedConfigMap inserts a config map row and returns it
func (tdb *TestDB) SeedConfigMap(t *testing.T, name string, data map[string]string) *models.ConfigMap {
	t.Helper()

	cm := &models.ConfigMap{Name: name, Data: models.StringMap(data)}
	if err := tdb.DB.Create(cm).Error; err != nil {
		t.Fatalf("failed to seed config map: %v", err)
	}
	return cm
}

// NewTestRedis starts a miniredis server and returns a RedisDB connected to it
func NewTestRedis(t *testing.T) (*RedisDB, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisDBFromClient(client), mr
}
