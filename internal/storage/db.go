// Package storage persists application state in SQLite: versioned state
// documents with revisions, storage metadata, backups and exports.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DB wraps the database connection.
type DB struct {
	conn   *sql.DB
	path   string
	logger *slog.Logger
}

// Config holds database configuration settings.
type Config struct {
	// Path is the file path to the SQLite database.
	// Use MemoryPath for an in-memory database (useful for testing).
	Path string

	// MaxOpenConns sets the maximum number of open connections to the database.
	// Default: 25. Always 1 for in-memory databases.
	MaxOpenConns int

	// MaxIdleConns sets the maximum number of idle connections in the pool.
	// Default: 5
	MaxIdleConns int

	// ConnMaxLifetime sets the maximum amount of time a connection may be reused.
	// Default: 5 minutes
	ConnMaxLifetime time.Duration

	// BusyTimeout sets how long to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// JournalMode sets the SQLite journal mode.
	// Options: DELETE, TRUNCATE, PERSIST, MEMORY, WAL, OFF
	// Default: WAL
	JournalMode string

	// Synchronous sets the SQLite synchronous mode.
	// Options: OFF, NORMAL, FULL, EXTRA
	// Default: NORMAL
	Synchronous string

	// AutoMigrate runs pending migrations on Open.
	AutoMigrate bool

	// Logger receives storage logs. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig(path string) *Config {
	return &Config{
		Path:            path,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		BusyTimeout:     5 * time.Second,
		JournalMode:     "WAL",
		Synchronous:     "NORMAL",
		AutoMigrate:     true,
	}
}

func (c *Config) isMemory() bool {
	return c.Path == MemoryPath
}

func (c *Config) dsn() string {
	pragmas := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", c.BusyTimeout.Milliseconds()),
		"_pragma=foreign_keys(1)",
	}
	if !c.isMemory() {
		pragmas = append(pragmas,
			fmt.Sprintf("_pragma=journal_mode(%s)", c.JournalMode),
			fmt.Sprintf("_pragma=synchronous(%s)", c.Synchronous),
		)
	}
	return "file:" + c.Path + "?" + strings.Join(pragmas, "&")
}

// Open creates a new database connection with the given configuration.
// It configures connection pooling and SQLite-specific settings and, with
// AutoMigrate, brings the schema up to date on the same connection pool.
func Open(config *Config) (*DB, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "storage")

	if !config.isMemory() {
		dir := filepath.Dir(config.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", config.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.isMemory() {
		// Each connection to :memory: is its own database, and an expired
		// connection takes its data with it.
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
	} else {
		conn.SetMaxOpenConns(config.MaxOpenConns)
		conn.SetMaxIdleConns(config.MaxIdleConns)
		conn.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := conn.Ping(); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to close database after ping error: %w (original error: %v)", closeErr, err)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, path: config.Path, logger: logger}

	if config.AutoMigrate {
		if err := db.Migrate(); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	logger.Debug("database opened", "path", config.Path)
	return db, nil
}

// Migrate applies all pending migrations.
func (db *DB) Migrate() error {
	mgr, err := NewMigrationManagerWithDB(db.conn)
	if err != nil {
		return fmt.Errorf("failed to create migration manager: %w", err)
	}
	defer func() {
		_ = mgr.Close()
	}()

	if err := mgr.Up(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	version, _, err := mgr.Version()
	if err != nil {
		return err
	}
	db.logger.Debug("schema up to date", "version", version)
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database path the connection was opened with.
func (db *DB) Path() string {
	return db.path
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}
