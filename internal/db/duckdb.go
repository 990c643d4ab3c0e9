// Package db opens the DuckDB database that holds per-profile preferences.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Config holds database configuration.
type Config struct {
	// DataDir holds duckdb/<DBName>.duckdb. Empty opens an in-memory database.
	DataDir string
	DBName  string
	// Extensions are installed and loaded after opening, e.g. "spatial".
	Extensions []string
}

// Open returns a DuckDB connection pool for cfg.
func Open(cfg Config) (*sql.DB, error) {
	dsn := ""
	if cfg.DataDir != "" {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		name := cfg.DBName
		if name == "" {
			name = "mapview"
		}
		dsn = filepath.Join(duckdbDir, name+".duckdb")
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open duckdb %q: %w", dsn, err)
	}

	for _, ext := range cfg.Extensions {
		if _, err := conn.Exec(fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("load extension %s: %w", ext, err)
		}
	}
	return conn, nil
}
