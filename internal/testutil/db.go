package testutil

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gasopt/optimizer/internal/model"
)

// SetupTestDB opens an in-memory sqlite database migrated for the worker's
// persisted job model, mirroring the teacher's testutil.SetupTestDB.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect test database: %v", err)
	}

	if err := db.AutoMigrate(&model.WorkerJob{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the underlying connection.
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()

	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("Warning: Failed to get underlying DB: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		t.Logf("Warning: Failed to close test database: %v", err)
	}
}

// TruncateTables clears the analysis_jobs table between test cases.
func TruncateTables(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Exec("DELETE FROM analysis_jobs").Error; err != nil {
		t.Logf("Warning: Failed to truncate analysis_jobs: %v", err)
	}
}
