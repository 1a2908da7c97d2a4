package db

import (
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"smart-street-backend/config"
	"smart-street-backend/internal/model"
)

// Models lists every table owned by the service, in migration order.
func Models() []any {
	return []any{
		&model.Space{},
		&model.Vendor{},
		&model.SpaceRequest{},
		&model.Permit{},
		&model.AuditLog{},
		&model.Notification{},
		&model.PushSubscription{},
	}
}

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(SQLiteDSN(cfg.DSN))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(parseLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.EnableRangeIndex && db.Dialector.Name() == "postgres" {
		log.Println("Range index is enabled, applying Postgres-specific DDL...")
		if err := applyRangeIndexDDL(db); err != nil {
			log.Printf("Warning: failed to apply range index DDL: %v. Continuing without it.", err)
		}
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate creates or updates every table in Models.
func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// OpenSQLite opens a file-backed sqlite database with the options the admission
// path depends on and migrates it.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(SQLiteDSN(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %q: %w", path, err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// SQLiteDSN appends the connection options required by the store: every
// transaction starts with BEGIN IMMEDIATE so concurrent writers queue on the
// database lock instead of interleaving, and waiters retry for up to 5s.
func SQLiteDSN(path string) string {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, opt := range []string{"_txlock=immediate", "_busy_timeout=5000", "_foreign_keys=1"} {
		key := opt[:strings.Index(opt, "=")]
		if strings.Contains(dsn, key+"=") {
			continue
		}
		dsn += sep + opt
		sep = "&"
	}
	return dsn
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func applyRangeIndexDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS btree_gist;",

		"ALTER TABLE space_requests DROP CONSTRAINT IF EXISTS space_requests_window_valid;",
		"ALTER TABLE space_requests " +
			"ADD CONSTRAINT space_requests_window_valid CHECK (start_time < end_time);",

		// Half-open windows, matching the overlap test used by the detector.
		"CREATE INDEX IF NOT EXISTS idx_space_requests_approved_window ON space_requests " +
			"USING GIST (tstzrange(start_time, end_time, '[)')) WHERE status = 'APPROVED';",

		"CREATE INDEX IF NOT EXISTS idx_permits_issued_at ON permits (issued_at DESC);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
