// Package postgres stores sessions in a single Postgres table.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/training/internal/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS workout_sessions (
        session_id TEXT PRIMARY KEY,
        owner TEXT NOT NULL,
        equipment TEXT NOT NULL,
        repetitions BIGINT[] NOT NULL,
        rest_intervals BIGINT[] NOT NULL,
        total_duration TEXT NOT NULL DEFAULT '',
        recorded_at TIMESTAMPTZ NOT NULL
    )`,
	`ALTER TABLE workout_sessions
        ALTER COLUMN repetitions TYPE BIGINT[],
        ALTER COLUMN rest_intervals TYPE BIGINT[]`,
	`CREATE INDEX IF NOT EXISTS workout_sessions_owner_recorded_idx
        ON workout_sessions (owner, recorded_at DESC)`,
}

// Repository provides Postgres-backed persistence for sessions.
type Repository struct {
	pool *pgxpool.Pool
}

// Connect creates a pool for dsn. Connections are established lazily.
func Connect(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	return NewRepository(pool), nil
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Prepare checks connectivity and creates the sessions table if missing.
func (r *Repository) Prepare(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range schema {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Create implements domain.SessionRepository.
func (r *Repository) Create(ctx context.Context, session domain.Session) error {
	const stmt = `INSERT INTO workout_sessions (session_id, owner, equipment, repetitions, rest_intervals, total_duration, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, stmt,
		session.ID,
		session.Owner,
		session.Equipment,
		toInt64s(session.Repetitions),
		toInt64s(session.RestIntervals),
		session.TotalDuration,
		session.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// ListByOwner implements domain.SessionRepository.
func (r *Repository) ListByOwner(ctx context.Context, owner string) ([]domain.Session, error) {
	const query = `SELECT session_id, owner, equipment, repetitions, rest_intervals, total_duration, recorded_at
        FROM workout_sessions WHERE owner=$1 ORDER BY recorded_at DESC, session_id DESC`

	rows, err := r.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}

	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Session, error) {
		var (
			s          domain.Session
			reps, rest []int64
			recordedAt time.Time
		)
		if err := row.Scan(&s.ID, &s.Owner, &s.Equipment, &reps, &rest, &s.TotalDuration, &recordedAt); err != nil {
			return domain.Session{}, err
		}
		s.Repetitions = fromInt64s(reps)
		s.RestIntervals = fromInt64s(rest)
		s.RecordedAt = recordedAt.UTC()
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return sessions, nil
}

// Close releases the pool.
func (r *Repository) Close(context.Context) error {
	r.pool.Close()
	return nil
}

func toInt64s(values []int) []int64 {
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = int64(v)
	}
	return out
}

func fromInt64s(values []int64) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v)
	}
	return out
}
