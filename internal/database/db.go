package database

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Config holds database configuration.
type Config struct {
	DatabasePath string
}

// DB wraps the sqlite connection and owns schema migration.
type DB struct {
	conn *sql.DB
}

// NewDB opens (creating if needed) the sqlite database at the configured path
// and brings the schema up to date with the embedded goose migrations.
func NewDB(cfg Config) (*DB, error) {
	if cfg.DatabasePath == "" {
		return nil, fmt.Errorf("database path not set")
	}
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := cfg.DatabasePath + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent requests.
	conn.SetMaxOpenConns(1)

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &DB{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(conn, "migrations")
}

// Connection exposes the underlying handle for repositories.
func (db *DB) Connection() *sql.DB {
	return db.conn
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
