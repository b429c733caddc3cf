package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/givescan/givescan/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS finder_results (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	place_id TEXT,
	name TEXT,
	email TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	place JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS finder_results_run_id_idx ON finder_results (run_id);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: init schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, rec *storage.Record) error {
	placeJSON, err := json.Marshal(rec.Place)
	if err != nil {
		return fmt.Errorf("postgres: marshal place: %w", err)
	}

	query := `
	INSERT INTO finder_results (id, run_id, place_id, name, email, created_at, place)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = b.pool.Exec(ctx, query,
		rec.ID,
		rec.RunID,
		rec.Place.PlaceID,
		rec.Place.Name,
		rec.Place.Email,
		rec.CreatedAt,
		placeJSON,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert: %w", err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	query := `SELECT id, run_id, created_at, place FROM finder_results WHERE 1=1`
	args := []any{}
	argN := 1

	if filter.RunID != "" {
		query += fmt.Sprintf(` AND run_id = $%d`, argN)
		args = append(args, filter.RunID)
		argN++
	}
	if filter.HasEmail != nil {
		if *filter.HasEmail {
			query += ` AND email != ''`
		} else {
			query += ` AND email = ''`
		}
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, argN)
		args = append(args, *filter.Since)
		argN++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argN)
		args = append(args, filter.Limit)
		argN++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argN)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	var results []*storage.Record
	for rows.Next() {
		var r storage.Record
		var placeJSON []byte

		if err := rows.Scan(&r.ID, &r.RunID, &r.CreatedAt, &placeJSON); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}

		if err := json.Unmarshal(placeJSON, &r.Place); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal place: %w", err)
		}

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}

	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
