// Package persistence opens the session store selected by a DSN.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"example.com/training/internal/domain"
	"example.com/training/internal/observability"
	"example.com/training/internal/persistence/memory"
	"example.com/training/internal/persistence/mongo"
	"example.com/training/internal/persistence/postgres"
)

// ErrUnsupportedScheme is returned for a DSN whose scheme names no backend.
var ErrUnsupportedScheme = errors.New("unsupported store scheme")

// Store is a session repository with a lifecycle.
type Store interface {
	domain.SessionRepository
	// Prepare verifies connectivity and creates indexes or tables if missing.
	Prepare(ctx context.Context) error
	Close(ctx context.Context) error
}

// Options tune Open.
type Options struct {
	// Database is the Mongo database used when the URI names none.
	Database string
	Logger   zerolog.Logger
}

// Open returns the store for dsn without contacting it. Call Prepare to check
// connectivity.
func Open(ctx context.Context, dsn string, opts Options) (Store, error) {
	scheme, _, ok := strings.Cut(strings.TrimSpace(dsn), "://")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, redact(dsn))
	}

	var (
		store Store
		err   error
	)
	backend := strings.ToLower(scheme)
	switch backend {
	case "mongodb", "mongodb+srv":
		backend = "mongo"
		store, err = mongo.Connect(ctx, dsn, opts.Database)
	case "postgres", "postgresql":
		backend = "postgres"
		store, err = postgres.Connect(ctx, dsn)
	case "memory":
		store = memory.NewRepository()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	if err != nil {
		return nil, err
	}

	opts.Logger.Info().Str("backend", backend).Msg("session store configured")
	return &instrumented{Store: store, backend: backend}, nil
}

// instrumented records latency and the persistence watermark around a Store.
type instrumented struct {
	Store
	backend string
}

func (s *instrumented) Create(ctx context.Context, session domain.Session) error {
	started := time.Now()
	err := s.Store.Create(ctx, session)
	observability.ObserveStoreOperation(s.backend, "create", started, err)
	if err == nil {
		observability.RecordSessionPersisted(session.RecordedAt)
	}
	return err
}

func (s *instrumented) ListByOwner(ctx context.Context, owner string) ([]domain.Session, error) {
	started := time.Now()
	sessions, err := s.Store.ListByOwner(ctx, owner)
	observability.ObserveStoreOperation(s.backend, "list", started, err)
	return sessions, err
}

// redact hides everything after a scheme-less DSN's first few characters so
// credentials never reach logs.
func redact(dsn string) string {
	if len(dsn) <= 8 {
		return dsn
	}
	return dsn[:8] + "..."
}
