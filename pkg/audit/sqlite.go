// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists entries in SQLite.
type SQLiteStore struct {
	db     *sql.DB
	closer bool
}

// OpenSQLite opens dsn with the pure-Go SQLite driver and prepares the
// schema. The returned store owns the connection.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store, err := NewSQLiteStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.closer = true
	return store, nil
}

// NewSQLiteStore wraps an open database and ensures the schema.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if err := ensureSchema(ctx, db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database when the store opened it.
func (s *SQLiteStore) Close() error {
	if !s.closer {
		return nil
	}
	return s.db.Close()
}

// Record stores a single entry.
func (s *SQLiteStore) Record(ctx context.Context, entry Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bdi_mutations (
			agent, run_id, seq, trigger_kind, goal_kind, term, origin, status, error_text, applied_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.Agent,
		entry.RunID,
		entry.Seq,
		entry.Trigger,
		entry.Goal,
		entry.Term,
		entry.Origin,
		entry.Status,
		entry.Error,
		normalizeTime(entry.AppliedAt),
	)
	return err
}

// List returns entries matching filter in record order.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT agent, run_id, seq, trigger_kind, goal_kind, term, origin, status, error_text, applied_at
		FROM bdi_mutations
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.Agent != "" {
		addFilter("agent = ?", filter.Agent)
	}
	if filter.Trigger != "" {
		addFilter("trigger_kind = ?", filter.Trigger)
	}
	if filter.Goal != "" {
		addFilter("goal_kind = ?", filter.Goal)
	}
	if filter.Status != "" {
		addFilter("status = ?", filter.Status)
	}
	if !filter.Since.IsZero() {
		addFilter("applied_at >= ?", filter.Since.UTC())
	}
	query += where + " ORDER BY id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			runID   sql.NullString
			origin  sql.NullString
			errText sql.NullString
			applied sql.NullTime
		)
		if err := rows.Scan(
			&entry.Agent,
			&runID,
			&entry.Seq,
			&entry.Trigger,
			&entry.Goal,
			&entry.Term,
			&origin,
			&entry.Status,
			&errText,
			&applied,
		); err != nil {
			return nil, err
		}
		entry.RunID = runID.String
		entry.Origin = origin.String
		entry.Error = errText.String
		if applied.Valid {
			entry.AppliedAt = applied.Time.UTC()
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS bdi_mutations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			agent TEXT NOT NULL,
			run_id TEXT,
			seq INTEGER NOT NULL,
			trigger_kind TEXT NOT NULL,
			goal_kind TEXT NOT NULL,
			term TEXT NOT NULL,
			origin TEXT,
			status TEXT NOT NULL,
			error_text TEXT,
			applied_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_bdi_mutations_agent ON bdi_mutations(agent);
		CREATE INDEX IF NOT EXISTS idx_bdi_mutations_status ON bdi_mutations(status);
	`)
	return err
}
