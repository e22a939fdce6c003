// Package store is the SQLite implementation of the cushion remote store.
//
// Every log entry is a row of the records table: its server id, its owner,
// its log name and its fields as a JSON document.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/etnz/cushion"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	entity     TEXT NOT NULL,
	fields     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
) STRICT;
CREATE INDEX IF NOT EXISTS records_owner_entity ON records (owner, entity);
`

const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// SQLite stores cushion records in a SQLite database. It implements
// cushion.Store.
type SQLite struct {
	conn *sql.DB
	path string
	log  zerolog.Logger
}

// Record is a stored log entry.
type Record struct {
	ID     string
	Fields json.RawMessage
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, log zerolog.Logger) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Use WAL mode for better concurrency
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// SQLite has a single writer.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLite{
		conn: conn,
		path: path,
		log:  log.With().Str("repo", "records").Logger(),
	}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Insert stores a new record and returns its server id.
func (s *SQLite) Insert(ctx context.Context, owner string, log cushion.Log, fields map[string]any) (string, error) {
	doc, err := json.Marshal(withoutID(fields))
	if err != nil {
		return "", fmt.Errorf("failed to encode %s record: %w", log, err)
	}
	id := uuid.NewString()
	now := time.Now().UTC().Format(timeLayout)
	_, err = s.conn.ExecContext(ctx,
		"INSERT INTO records (id, owner, entity, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, owner, string(log), string(doc), now, now)
	if err != nil {
		return "", fmt.Errorf("failed to insert %s record: %w", log, err)
	}
	s.log.Debug().Str("entity", string(log)).Str("id", id).Msg("Inserted record")
	return id, nil
}

// Update merges fields into the record id.
func (s *SQLite) Update(ctx context.Context, log cushion.Log, id string, fields map[string]any) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var doc string
	err = tx.QueryRowContext(ctx, "SELECT fields FROM records WHERE id = ? AND entity = ?", id, string(log)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s record %q: %w", log, id, cushion.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s record %q: %w", log, id, err)
	}

	current := make(map[string]any)
	if err := json.Unmarshal([]byte(doc), &current); err != nil {
		return fmt.Errorf("corrupted %s record %q: %w", log, id, err)
	}
	for k, v := range withoutID(fields) {
		current[k] = v
	}
	merged, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", log, err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE records SET fields = ?, updated_at = ? WHERE id = ?",
		string(merged), time.Now().UTC().Format(timeLayout), id); err != nil {
		return fmt.Errorf("failed to update %s record %q: %w", log, id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.log.Debug().Str("entity", string(log)).Str("id", id).Msg("Updated record")
	return nil
}

// Delete removes the record id. Deleting a missing record is not an error.
func (s *SQLite) Delete(ctx context.Context, log cushion.Log, id string) error {
	result, err := s.conn.ExecContext(ctx, "DELETE FROM records WHERE id = ? AND entity = ?", id, string(log))
	if err != nil {
		return fmt.Errorf("failed to delete %s record %q: %w", log, id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		s.log.Debug().Str("entity", string(log)).Str("id", id).Msg("Deleted record")
	}
	return nil
}

// Load returns the records of owner in log, in insertion order.
func (s *SQLite) Load(ctx context.Context, owner string, log cushion.Log) ([]Record, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT id, fields FROM records WHERE owner = ? AND entity = ? ORDER BY rowid",
		owner, string(log))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s records: %w", log, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r   Record
			doc string
		)
		if err := rows.Scan(&r.ID, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan %s record: %w", log, err)
		}
		r.Fields = json.RawMessage(doc)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s records: %w", log, err)
	}
	return records, nil
}

// withoutID drops the local id: the row id is the server one.
func withoutID(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != "id" {
			out[k] = v
		}
	}
	return out
}
