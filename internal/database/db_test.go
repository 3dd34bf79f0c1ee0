package database

import (
	"testing"

	"gorm.io/gorm"

	"github.com/rbigger/aiamp/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("expected health query to succeed: %v", err)
	}
}

func TestMigrateCreatesSchema(t *testing.T) {
	db := openTestDB(t)

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	account := models.Account{Email: "migrations@example.com", Password: "hash"}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}

	var count int64
	if err := db.Model(&models.Account{}).Count(&count).Error; err != nil {
		t.Fatalf("count accounts: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 account, got %d", count)
	}

	for _, table := range []string{"invites", "api_keys", "documents", "notes", "sessions", "password_reset_tokens", "audit_logs"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("expected table %q to exist", table)
		}
	}
}

func TestMigrateNilHandle(t *testing.T) {
	if err := Migrate(nil); err == nil {
		t.Fatalf("expected error for nil database handle")
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite"})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
