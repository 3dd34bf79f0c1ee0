package database

import (
	"gorm.io/gorm"

	"github.com/rbigger/aiamp/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Account{},
		&models.Session{},
		&models.Invite{},
		&models.APIKey{},
		&models.PasswordResetToken{},
		&models.Document{},
		&models.Note{},
		&models.AuditLog{},
	)
}
