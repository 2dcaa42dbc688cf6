// Package db opens the relational database holding users, stats and assets
package db

import (
	"bitwise74/model-vault/internal/model"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// New opens a connection using the given driver ("sqlite" or "postgres")
// and dsn. Tables are not migrated, call Migrate for that.
func New(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch driver {
	case "sqlite":
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}

		dialector = sqlite.Open(dsn + sep + "_foreign_keys=on&_busy_timeout=5000")
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := Open(dialector)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s database, %w", driver, err)
	}

	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB, %w", err)
		}

		// SQLite only allows a single writer at a time
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// RequireMounted refuses a sqlite database file that doesn't exist yet when
// inDocker is set. Inside a container the host should mount it using
// volumes, otherwise the data is lost with the container.
func RequireMounted(driver, dsn string, inDocker bool) error {
	if driver != "sqlite" || !inDocker {
		return nil
	}

	file, _, _ := strings.Cut(dsn, "?")
	if file == ":memory:" || strings.HasPrefix(file, "file::memory:") {
		return nil
	}

	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("SQLite database file not mounted, please use docker volumes to mount it to %s", file)
	}

	return nil
}

// Open wraps gorm.Open with the application's logger settings
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger: newLogger(),
	})
}

// Migrate creates or updates every table used by the application
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(model.User{}, model.Stats{}, model.Asset{})
	if err != nil {
		return fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return nil
}

// newLogger routes gorm's output through the global zap logger
func newLogger() gormlogger.Interface {
	level := gormlogger.Warn
	if zap.L().Core().Enabled(zap.DebugLevel) {
		level = gormlogger.Info
	}

	return gormlogger.New(
		log.New(zap.NewStdLog(zap.L()).Writer(), "", 0),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
