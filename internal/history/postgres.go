package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore persists dispatch history in PostgreSQL.
type PostgresStore struct {
	DB *sql.DB
}

// NewPostgresStore opens and pings a PostgreSQL connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

const insertDispatchQuery = `
INSERT INTO dispatches (id, request, aggregate, formatted_text, processing_time_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`

// SaveDispatch stores one dispatch record.
func (s *PostgresStore) SaveDispatch(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, insertDispatchQuery,
		rec.ID, rec.Request, []byte(rec.Aggregate), rec.FormattedText,
		rec.ProcessingTime.Milliseconds(), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert dispatch %s: %w", rec.ID, err)
	}
	return nil
}

const recentDispatchesQuery = `
SELECT id, request, aggregate, formatted_text, processing_time_ms, created_at
FROM dispatches
ORDER BY created_at DESC
LIMIT $1
`

// RecentDispatches returns the most recent records, newest first.
func (s *PostgresStore) RecentDispatches(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, recentDispatchesQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec Record
			ms  int64
		)
		if err := rows.Scan(&rec.ID, &rec.Request, (*[]byte)(&rec.Aggregate), &rec.FormattedText, &ms, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
		rec.ProcessingTime = time.Duration(ms) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *PostgresStore) Close() error {
	return s.DB.Close()
}
