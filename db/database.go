package db

import (
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the shared handle used by handlers and services.
var DB *gorm.DB

// Initialize opens the planes de mejora database. WAL mode plus a busy
// timeout keeps concurrent seguimiento writes from tripping SQLITE_BUSY.
func Initialize(dbPath string, environment string) error {
	logLevel := logger.Info
	if environment == "production" {
		logLevel = logger.Warn
	}

	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	var err error
	DB, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("opening %s: %w", dbPath, err)
	}

	log.Printf("Base de datos abierta en %s (WAL)", dbPath)
	return nil
}

// AutoMigrate keeps the plan, seguimiento, catalog and user tables in
// sync with their models.
func AutoMigrate(models ...interface{}) error {
	if DB == nil {
		return fmt.Errorf("base de datos sin inicializar")
	}

	if err := DB.AutoMigrate(models...); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	log.Println("Migraciones aplicadas")
	return nil
}

// Close closes the underlying connection.
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("retrieving sql.DB: %w", err)
	}

	return sqlDB.Close()
}
