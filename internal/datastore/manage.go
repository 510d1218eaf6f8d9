package datastore

import (
	"log"
	"log/slog"
	"os"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tphakala/platewatch-go/internal/errors"
	"github.com/tphakala/platewatch-go/internal/logging"
)

// slowQueryThreshold marks queries worth flagging; migration batches on a
// cold SQLite file can take several hundred ms, so stay above that.
const slowQueryThreshold = time.Second

// createGormLogger configures the GORM logger with the slow query threshold.
func createGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// performAutoMigration creates or updates the session history schema.
func performAutoMigration(db *gorm.DB, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&VehicleSession{}); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Build()
	}

	logger := logging.ForService("datastore")
	if logger == nil {
		logger = slog.Default().With("service", "datastore")
	}
	logger.Info("session history schema ready", "db_type", dbType, "target", connectionInfo)

	return nil
}
