package datastore

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/nutrisnap/nutrisnap/internal/conf"
	"github.com/nutrisnap/nutrisnap/internal/logger"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings conf.DatabaseSettings
}

// Open connects to MySQL and migrates the schema
func (store *MySQLStore) Open() error {
	log := GetLogger().Module("mysql")

	db, err := gorm.Open(mysql.Open(mysqlDSN(store.Settings.MySQL)), gormConfig(store.Settings, log))
	if err != nil {
		log.Error("failed to open MySQL database",
			logger.String("host", store.Settings.MySQL.Host),
			logger.String("port", store.Settings.MySQL.Port),
			logger.String("database", store.Settings.MySQL.Database),
			logger.Error(err))
		return dbError(fmt.Errorf("failed to open MySQL database: %w", err), "open-mysql")
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	store.DB = db
	return store.Migrate()
}
