package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"poe-wealth/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultDSN is a SQLite file next to the price cache.
const DefaultDSN = "data/wealth.sqlite"

// Initialize opens the snapshot database. A DSN containing "@tcp(" or
// prefixed with "mysql://" selects MySQL; anything else is a SQLite path.
func Initialize(databaseURL string) (*gorm.DB, error) {
	if databaseURL == "" {
		databaseURL = DefaultDSN
	}

	dialector, name := dialect(databaseURL)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if name == "mysql" {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		// SQLite serializes writers.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Printf("Database initialized (%s)", name)
	return db, nil
}

func dialect(dsn string) (gorm.Dialector, string) {
	if strings.HasPrefix(dsn, "mysql://") {
		return mysql.Open(strings.TrimPrefix(dsn, "mysql://")), "mysql"
	}
	if strings.Contains(dsn, "@tcp(") {
		return mysql.Open(dsn), "mysql"
	}
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				log.Printf("Failed to create database dir %s: %v", dir, err)
			}
		}
	}
	return sqlite.Open(dsn), "sqlite"
}

// Migrate creates the snapshots table and its (league, timestamp desc) index.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.SnapshotRecord{}); err != nil {
		return fmt.Errorf("failed to migrate snapshots: %w", err)
	}
	if !db.Migrator().HasIndex(&models.SnapshotRecord{}, "idx_league_timestamp") {
		if err := db.Migrator().CreateIndex(&models.SnapshotRecord{}, "idx_league_timestamp"); err != nil {
			log.Printf("Migration warning: %v", err)
		}
	}
	return nil
}
