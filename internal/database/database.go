package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"insightica/internal/config"
)

// Conn is what stores need from the database: a handle for reads and a
// serialized write path.
type Conn interface {
	GetConnection() *gorm.DB
	Write(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DBManager owns the application's database connection. SQLite goes through
// cartridge's sqlite.Manager, PostgreSQL through gorm's postgres driver.
type DBManager struct {
	kind    string
	sqlite  *sqlite.Manager
	db      *gorm.DB
	postDSN string
	logger  *slog.Logger
}

var _ Conn = (*DBManager)(nil)

// NewDBManager prepares a manager for the configured database type. Call
// Init before use.
func NewDBManager(cfg *config.Config, logger *slog.Logger) *DBManager {
	dm := &DBManager{kind: cfg.DatabaseType, logger: logger}

	switch cfg.DatabaseType {
	case config.PostgresDatabase:
		dm.postDSN = strings.TrimSpace(cfg.DatabaseURL)
	default:
		dm.kind = config.SQLiteDatabase
		dm.sqlite = sqlite.NewManager(sqlite.Config{
			Path:         cfg.DatabaseName,
			MaxOpenConns: cfg.GetMaxOpenConns(),
			MaxIdleConns: cfg.GetMaxIdleConns(),
			Logger:       logger,
			EnableWAL:    true,
			TxImmediate:  true,
			BusyTimeout:  5000,
		})
	}
	return dm
}

// NewFromGorm wraps an already opened connection. kind selects the write
// strategy and must be config.SQLiteDatabase or config.PostgresDatabase.
func NewFromGorm(db *gorm.DB, kind string, logger *slog.Logger) *DBManager {
	return &DBManager{kind: kind, db: db, logger: logger}
}

// Init opens the connection.
func (dm *DBManager) Init() error {
	if dm.sqlite != nil {
		_, err := dm.sqlite.Connect()
		if err != nil {
			return fmt.Errorf("connect sqlite: %w", err)
		}
		dm.db = dm.sqlite.GetConnection()
		return nil
	}

	if !strings.HasPrefix(dm.postDSN, "postgres://") && !strings.HasPrefix(dm.postDSN, "postgresql://") {
		return errors.New("database url must be a postgres:// or postgresql:// URL")
	}
	db, err := gorm.Open(postgres.Open(dm.postDSN), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	dm.db = db
	return nil
}

// Kind returns the database type in use.
func (dm *DBManager) Kind() string {
	return dm.kind
}

// GetConnection returns the gorm handle, or nil before Init.
func (dm *DBManager) GetConnection() *gorm.DB {
	return dm.db
}

// Write runs fn in a write transaction. On SQLite writes are funneled
// through cartridge so they serialize behind the single writer.
func (dm *DBManager) Write(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if dm.db == nil {
		return gorm.ErrInvalidDB
	}
	db := dm.db.WithContext(ctx)
	if dm.kind == config.SQLiteDatabase {
		return sqlite.PerformWrite(dm.logger, db, fn)
	}
	return db.Transaction(fn)
}

// MigrateDatabase auto-migrates the given models in one transaction.
func (dm *DBManager) MigrateDatabase(models ...any) error {
	db := dm.GetConnection()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(models...)
	})
	if err != nil {
		dm.logger.Error("Failed to auto-migrate database", slog.Any("error", err))
		return err
	}

	if dm.sqlite != nil {
		if err := dm.sqlite.CheckpointWAL("FULL"); err != nil {
			dm.logger.Warn("Failed to checkpoint WAL after migration", slog.Any("error", err))
		}
	}

	dm.logger.Info("Database migration completed successfully", slog.String("db_type", dm.kind))
	return nil
}

// Close releases the underlying connection pool.
func (dm *DBManager) Close() error {
	if dm.db == nil {
		return nil
	}
	sqlDB, err := dm.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the connection is alive.
func (dm *DBManager) Ping(ctx context.Context) error {
	if dm.db == nil {
		return gorm.ErrInvalidDB
	}
	sqlDB, err := dm.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
