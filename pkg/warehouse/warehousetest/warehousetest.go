// Package warehousetest opens throwaway in-memory warehouses for tests.
package warehousetest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var seq atomic.Int64

// Open returns a migrated in-memory SQLite warehouse private to t.
// The pool holds a single connection, so code under test must use the tx handed to
// transaction callbacks rather than the outer handle.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", name, seq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := warehouse.NewRepository(db).AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func Ptr[T any](v T) *T {
	return &v
}
