package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nutrisnap/nutrisnap/internal/conf"
	"github.com/nutrisnap/nutrisnap/internal/logger"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings conf.DatabaseSettings
}

// Open opens the SQLite database file, creating its directory, and migrates it
func (store *SQLiteStore) Open() error {
	path := store.Settings.SQLite.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return dbError(fmt.Errorf("creating database directory: %w", err), "open-sqlite")
		}
	}

	log := GetLogger().Module("sqlite")
	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), gormConfig(store.Settings, log))
	if err != nil {
		return dbError(fmt.Errorf("failed to open SQLite database: %w", err), "open-sqlite")
	}

	// WAL allows one writer; a single connection avoids SQLITE_BUSY under concurrent recording
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	store.DB = db
	if err := store.Migrate(); err != nil {
		return err
	}

	log.Info("database opened", logger.String("path", path))
	return nil
}
