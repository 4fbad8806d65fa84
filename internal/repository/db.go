package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // embedded engine

	"github.com/tablegate/tablegate/internal/config"
	"github.com/tablegate/tablegate/internal/model"
)

// NewDB opens the primary storage pool used for dynamic CRUD statements.
func NewDB(cfg *config.Config) (*sqlx.DB, error) {
	return open(cfg, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
}

// NewAuditDB opens a second, smaller pool. Audit records commit through
// their own connections: a rollback or long-held lock on the business side
// never delays an audit write or erases evidence of the attempt.
func NewAuditDB(cfg *config.Config) (*sqlx.DB, error) {
	return open(cfg, 10, 2)
}

func open(cfg *config.Config, maxOpen, maxIdle int) (*sqlx.DB, error) {
	driver, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	if maxOpen <= 0 {
		maxOpen = 50
	}
	if maxIdle <= 0 {
		maxIdle = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(1 * time.Hour)
	return db, nil
}

// NewLedgerDB opens the gorm handle backing login attempts, sessions and
// user accounts, and migrates their fixed schema.
func NewLedgerDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if cfg.Database.DSN != "" {
		dialector = postgres.Open(cfg.Database.DSN)
	} else {
		path, err := sqlitePath(cfg)
		if err != nil {
			return nil, err
		}
		dialector = sqlite.Dialector{DriverName: "sqlite", DSN: path}
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger db: %w", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Session{}, &model.LoginAttempt{}); err != nil {
		return nil, fmt.Errorf("ledger migration: %w", err)
	}
	return db, nil
}

func dataSource(cfg *config.Config) (driver, dsn string, err error) {
	if cfg.Database.DSN != "" {
		return "pgx", cfg.Database.DSN, nil
	}
	path, err := sqlitePath(cfg)
	if err != nil {
		return "", "", err
	}
	// WAL keeps the audit pool writable while a business transaction holds
	// the file; busy_timeout covers the brief writer handoff.
	dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	return "sqlite", dsn, nil
}

func sqlitePath(cfg *config.Config) (string, error) {
	path := cfg.Database.SQLitePath
	if path == "" {
		path = "./data/tablegate.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create data dir: %w", err)
		}
	}
	return path, nil
}
