package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/givescan/givescan/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

// The full place record is kept as JSON alongside the columns used for
// filtering, so optional fields survive a round trip untouched.
const schema = `
CREATE TABLE IF NOT EXISTS finder_results (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	place_id TEXT,
	name TEXT,
	email TEXT,
	created_at DATETIME NOT NULL,
	place TEXT NOT NULL
);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, rec *storage.Record) error {
	placeJSON, err := json.Marshal(rec.Place)
	if err != nil {
		return fmt.Errorf("sqlite: marshal place: %w", err)
	}

	query := `
	INSERT INTO finder_results (id, run_id, place_id, name, email, created_at, place)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = b.db.ExecContext(ctx, query,
		rec.ID,
		rec.RunID,
		rec.Place.PlaceID,
		rec.Place.Name,
		rec.Place.Email,
		rec.CreatedAt,
		string(placeJSON),
	)

	if err != nil {
		return fmt.Errorf("sqlite: insert: %w", err)
	}

	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	query := `SELECT id, run_id, created_at, place FROM finder_results WHERE 1=1`
	args := []any{}

	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.HasEmail != nil {
		if *filter.HasEmail {
			query += ` AND email != ''`
		} else {
			query += ` AND email = ''`
		}
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	// SQLite only accepts OFFSET after a LIMIT clause; -1 means no limit.
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	var results []*storage.Record
	for rows.Next() {
		var r storage.Record
		var placeJSON string
		var createdAt time.Time

		if err := rows.Scan(&r.ID, &r.RunID, &createdAt, &placeJSON); err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}

		r.CreatedAt = createdAt
		if err := json.Unmarshal([]byte(placeJSON), &r.Place); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal place: %w", err)
		}

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
