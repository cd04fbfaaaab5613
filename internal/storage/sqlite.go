package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lindqvist/kvitto/internal/model"
	"github.com/lindqvist/kvitto/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the service.Storage interface using SQLite.
type SQLiteStorage struct {
	cacheExpiry  time.Time
	db           *sql.DB
	mappingCache map[string]*model.ProductMapping
	dbPath       string
	cacheMutex   sync.RWMutex
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:           db,
		dbPath:       dbPath,
		mappingCache: make(map[string]*model.ProductMapping),
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{tx: tx}, nil
}

type sqliteTransaction struct {
	tx *sql.Tx
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// cacheKey builds the per-user lookup key for the mapping cache.
func cacheKey(userID, originalName string) string {
	return userID + "\x1f" + originalName
}

// getCachedMapping retrieves a mapping from the cache.
func (s *SQLiteStorage) getCachedMapping(userID, originalName string) *model.ProductMapping {
	s.cacheMutex.RLock()

	if time.Now().After(s.cacheExpiry) {
		// Cache expired, needs to be cleared
		s.cacheMutex.RUnlock()
		s.cacheMutex.Lock()
		defer s.cacheMutex.Unlock()

		// Double-check after acquiring write lock
		if time.Now().After(s.cacheExpiry) {
			s.mappingCache = make(map[string]*model.ProductMapping)
		}
		return nil
	}

	mapping := s.mappingCache[cacheKey(userID, originalName)]
	s.cacheMutex.RUnlock()
	if mapping == nil {
		return nil
	}

	// Callers get their own copy; mutating it must not touch the cache.
	copied := *mapping
	return &copied
}

// cacheMapping adds a copy of the mapping to the cache, so the caller's
// pointer stays theirs to mutate.
func (s *SQLiteStorage) cacheMapping(mapping *model.ProductMapping) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	if len(s.mappingCache) == 0 {
		// Set cache expiry on first entry
		s.cacheExpiry = time.Now().Add(5 * time.Minute)
	}
	copied := *mapping
	s.mappingCache[cacheKey(mapping.UserID, mapping.OriginalName)] = &copied
}

// invalidateUserCache drops all cached mappings for one user. Group-level
// writes touch many rows at once, so per-key eviction is not worth it.
func (s *SQLiteStorage) invalidateUserCache(userID string) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	prefix := userID + "\x1f"
	for key := range s.mappingCache {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(s.mappingCache, key)
		}
	}
}

// WarmMappingCache loads all of a user's mappings into the cache.
func (s *SQLiteStorage) WarmMappingCache(ctx context.Context, userID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	mappings, err := s.GetMappingsForUser(ctx, userID)
	if err != nil {
		return err
	}

	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	for i := range mappings {
		s.mappingCache[cacheKey(userID, mappings[i].OriginalName)] = &mappings[i]
	}
	s.cacheExpiry = time.Now().Add(5 * time.Minute)
	return nil
}
