package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const templateSchema = `CREATE TABLE IF NOT EXISTS template_tables (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	content    BLOB NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLiteTemplateStore keeps the template table in a single-row SQLite table.
type SQLiteTemplateStore struct {
	conn *sql.DB
}

// NewSQLiteTemplateStore opens (creating if needed) the database at dbPath.
func NewSQLiteTemplateStore(dbPath string) (*SQLiteTemplateStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(templateSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteTemplateStore{conn: conn}, nil
}

// Close closes the database.
func (s *SQLiteTemplateStore) Close() error {
	return s.conn.Close()
}

// Load returns the stored table, or nil when the row does not exist yet.
func (s *SQLiteTemplateStore) Load(ctx context.Context) ([]byte, error) {
	var content []byte
	err := s.conn.QueryRowContext(ctx, `SELECT content FROM template_tables WHERE id = 1`).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query template table: %w", err)
	}
	return content, nil
}

// Save upserts the table row.
func (s *SQLiteTemplateStore) Save(ctx context.Context, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO template_tables (id, content, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		data, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save template table: %w", err)
	}
	return nil
}
