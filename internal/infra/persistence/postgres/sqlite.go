package postgres

import (
	"log/slog"
	"strings"

	"blog/internal/errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenSQLite opens a SQLite database for local development and tests.
// dsn is a file path or a "file:" URI; foreign keys are always enforced.
func OpenSQLite(dsn string, log *slog.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("sqlite path is required")
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	var gormLogger logger.Interface = logger.Discard
	if log != nil {
		gormLogger = newGormSlogLogger(log, nil)
	}

	db, err := gorm.Open(sqlite.Open(dsn+sep+"_foreign_keys=on"), &gorm.Config{
		TranslateError:         true,
		SkipDefaultTransaction: true,
		Logger:                 gormLogger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open SQLite database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get SQLite sql.DB")
	}
	// SQLite serialises writers; a single connection keeps transactions from contending.
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}
