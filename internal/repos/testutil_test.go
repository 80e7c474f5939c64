package repos

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/domainscout/core/internal/domain"
)

var memDBCounter int

func uniqueMemDSN() string {
	memDBCounter++
	return fmt.Sprintf("file:repotest%d?mode=memory&cache=shared", memDBCounter)
}

// openJobStore opens an in-memory SQLite handle migrated with the per-job
// store's three tables, mirroring internal/store.migrateJobStore. Each call
// gets its own named in-memory database so tests never share state.
func openJobStore(tb testing.TB) *gorm.DB {
	tb.Helper()
	db, err := gorm.Open(sqlite.Open(uniqueMemDSN()), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Job{}, &domain.DomainResult{}, &domain.SearchArtifact{}); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}

// openIndexStore opens an in-memory SQLite handle migrated with the
// job_index table. Production always points this at PostgreSQL, but the
// schema is plain enough that SQLite serves the repo's tests without a
// running database.
func openIndexStore(tb testing.TB) *gorm.DB {
	tb.Helper()
	db, err := gorm.Open(sqlite.Open(uniqueMemDSN()), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.JobIndex{}); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}
