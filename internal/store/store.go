// Package store opens the two storage engines this repo uses: a private,
// embedded SQLite database per job (the durable source of truth, per
// spec.md Invariant 6) and a shared PostgreSQL job_index table (routing
// and listing only — see SPEC_FULL.md §3).
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/domainscout/core/internal/domain"
)

// JobStores opens and caches per-job SQLite handles, keyed by job id, so a
// single process can run many jobs concurrently (spec.md §5) without
// reopening the same file repeatedly.
type JobStores struct {
	dataDir string

	mu      sync.Mutex
	opened  map[uuid.UUID]*gorm.DB
}

func NewJobStores(dataDir string) *JobStores {
	return &JobStores{dataDir: dataDir, opened: map[uuid.UUID]*gorm.DB{}}
}

func (s *JobStores) pathFor(id uuid.UUID) string {
	return filepath.Join(s.dataDir, "jobs", id.String()+".db")
}

// Open returns the gorm handle for a job's embedded store, creating and
// migrating the file on first use. Safe for concurrent use across
// different job ids; a single job id is always handed back the same
// cached *gorm.DB so all writers within a process share one connection.
func (s *JobStores) Open(id uuid.UUID) (*gorm.DB, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("store: nil job id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.opened[id]; ok {
		return db, nil
	}
	path := s.pathFor(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := migrateJobStore(db); err != nil {
		return nil, fmt.Errorf("store: migrate %s: %w", path, err)
	}
	s.opened[id] = db
	return db, nil
}

// Exists reports whether a store file already exists for id, without
// opening/migrating it. Used by the controller's Conflict check.
func (s *JobStores) Exists(id uuid.UUID) bool {
	_, err := os.Stat(s.pathFor(id))
	return err == nil
}

func migrateJobStore(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Job{}, &domain.DomainResult{}, &domain.SearchArtifact{})
}

// OpenIndex opens the process-wide PostgreSQL job_index store.
func OpenIndex(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open index: %w", err)
	}
	if err := db.AutoMigrate(&domain.JobIndex{}); err != nil {
		return nil, fmt.Errorf("store: migrate index: %w", err)
	}
	return db, nil
}
