// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/nutrisnap/nutrisnap/internal/conf"
	"github.com/nutrisnap/nutrisnap/internal/logger"
)

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error
	Ping(ctx context.Context) error

	// RecordResolution inserts an upload and its resolution in one transaction.
	RecordResolution(ctx context.Context, meta UploadMeta, in ResolutionInput) (*Upload, *NutritionResolution, error)
	// History returns resolutions joined with their uploads, newest first.
	History(ctx context.Context, q HistoryQuery) ([]HistoryEntry, error)

	// LabelMappings returns every mapping in insertion order.
	LabelMappings(ctx context.Context) ([]LabelMapping, error)
	// NutritionProfile returns the profile of foodKey or ErrProfileNotFound.
	NutritionProfile(ctx context.Context, foodKey string) (*NutritionProfile, error)
	NutritionProfiles(ctx context.Context) ([]NutritionProfile, error)

	Seed(ctx context.Context, data *SeedData) (SeedStats, error)
}

// DataStore implements Interface on top of a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New returns the store selected by settings. A database url takes precedence
// over the typed settings.
func New(settings *conf.Settings) (Interface, error) {
	db, err := resolveDatabaseSettings(settings.Database)
	if err != nil {
		return nil, err
	}

	switch db.Type {
	case "sqlite":
		return &SQLiteStore{Settings: db}, nil
	case "mysql":
		return &MySQLStore{Settings: db}, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", db.Type)
	}
}

// NewWithDB wraps an already opened gorm connection and migrates it.
func NewWithDB(db *gorm.DB) (*DataStore, error) {
	ds := &DataStore{DB: db}
	if err := ds.Migrate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// Migrate creates or updates the four tables
func (ds *DataStore) Migrate() error {
	if ds.DB == nil {
		return ErrNotOpen
	}
	if err := ds.DB.AutoMigrate(&Upload{}, &NutritionResolution{}, &LabelMapping{}, &NutritionProfile{}); err != nil {
		return dbError(err, "auto-migrate")
	}
	return nil
}

// Ping verifies the connection is alive
func (ds *DataStore) Ping(ctx context.Context) error {
	if ds.DB == nil {
		return ErrNotOpen
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "ping")
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	return nil
}

func gormConfig(settings conf.DatabaseSettings, log logger.Logger) *gorm.Config {
	return &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, settings.SlowThreshold),
	}
}
