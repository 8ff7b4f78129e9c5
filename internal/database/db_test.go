package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/staffhub/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestAutoMigrateCreatesIdentityTables(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrateAndSeed(db))

	migrator := db.Migrator()
	for _, model := range []any{
		&models.Account{},
		&models.EmployeeProfile{},
		&models.VerificationToken{},
		&models.RefreshToken{},
		&models.AuditLog{},
		&models.CacheEntry{},
	} {
		require.True(t, migrator.HasTable(model), "expected table for %T", model)
	}
	require.True(t, migrator.HasIndex(&models.VerificationToken{}, "idx_verification_account_purpose"))
}

func TestAccountEmailIsUnique(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	require.NoError(t, db.Create(&models.Account{Email: "a@x.com", PasswordHash: "h"}).Error)
	err := db.Create(&models.Account{Email: "a@x.com", PasswordHash: "h"}).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite", DSN: "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared&_foreign_keys=1"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
