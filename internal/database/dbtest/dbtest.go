// Package dbtest opens throwaway sqlite databases with the full schema for
// tests of packages that depend on *database.DB.
package dbtest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/smbt-dev/inspectgo/internal/database"
	"github.com/smbt-dev/inspectgo/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
)

// Open returns a migrated database stored in t.TempDir(). It is closed when
// the test finishes.
func Open(t testing.TB) *database.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := database.New(sqlite.Open(path), 5*time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}
