package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/staffhub/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Account{},
		&models.EmployeeProfile{},
		&models.VerificationToken{},
		&models.RefreshToken{},
		&models.AuditLog{},
		&models.CacheEntry{},
	)
}
