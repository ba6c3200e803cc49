package database

import (
	"fmt"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL alert store
func Connect(dsn string, logLevel gormlogger.LogLevel) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("database connection established")
	return nil
}

// OpenLocal opens the sqlite file that holds last-known-good snapshots.
// It is kept apart from the alert store so the fallback still works while
// PostgreSQL is unreachable.
func OpenLocal(path string, logLevel gormlogger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot cache %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	sqlDB.SetMaxOpenConns(1)

	if err := MigrateSnapshotCache(db); err != nil {
		return nil, err
	}
	logger.Info("snapshot cache opened", zap.String("path", path))
	return db, nil
}

// AutoMigrate runs alert store migrations
func AutoMigrate() error {
	logger.Info("running database migrations")

	if err := DB.AutoMigrate(
		&AlertTrigger{},
		&AlertInstance{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("database migrations completed")
	return nil
}

// MigrateSnapshotCache creates the snapshot cache table on db
func MigrateSnapshotCache(db *gorm.DB) error {
	if err := db.AutoMigrate(&SnapshotEntry{}); err != nil {
		return fmt.Errorf("failed to migrate snapshot cache: %w", err)
	}
	return nil
}

// InitializeDefaults creates the trigger rows that don't exist yet.
// Existing rows are left alone so administrator edits survive restarts.
func InitializeDefaults(db *gorm.DB, defaults []AlertTrigger) error {
	created := 0
	for i := range defaults {
		def := defaults[i]
		var count int64
		if err := db.Model(&AlertTrigger{}).Where("trigger_type = ?", def.TriggerType).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check trigger %s: %w", def.TriggerType, err)
		}
		if count > 0 {
			continue
		}
		if err := db.Create(&def).Error; err != nil {
			return fmt.Errorf("failed to create default trigger %s: %w", def.TriggerType, err)
		}
		created++
	}
	if created > 0 {
		logger.Info("created default alert triggers", zap.Int("count", created))
	}
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
