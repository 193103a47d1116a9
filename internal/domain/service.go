// Package domain defines the workout session model and the operations shared by
// the HTTP façade and the telemetry ingestion worker.
package domain

import (
	"context"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// SessionRepository captures persistence operations. Sessions are create-only.
type SessionRepository interface {
	Create(ctx context.Context, session Session) error
	// ListByOwner returns the owner's sessions ordered by RecordedAt, newest first.
	ListByOwner(ctx context.Context, owner string) ([]Session, error)
}

// Publisher fans a stored session out to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, session Session, source Source) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Session, Source) error { return nil }

// ServiceOption configures optional behaviour for the Service.
type ServiceOption func(*Service)

// WithPublisher sets the publisher notified after each successful write.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides the clock used to stamp RecordedAt.
func WithClock(c quartz.Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger used for publish failures.
func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// Service orchestrates session workflows.
type Service struct {
	repo      SessionRepository
	publisher Publisher
	clock     quartz.Clock
	logger    zerolog.Logger
}

// NewService constructs a Service.
func NewService(repo SessionRepository, opts ...ServiceOption) *Service {
	s := &Service{
		repo:      repo,
		publisher: noopPublisher{},
		clock:     quartz.NewReal(),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSessionInput captures the payload from the API layer.
type CreateSessionInput struct {
	Owner       string
	Equipment   string
	Repetitions []int
}

// Record persists a session produced by the telemetry normalizer.
func (s *Service) Record(ctx context.Context, session Session) (Session, error) {
	return s.persist(ctx, session, SourceTelemetry)
}

// Create persists a session submitted through the API. No telemetry defaults
// apply on this path: rest intervals stay empty and total duration unset.
func (s *Service) Create(ctx context.Context, input CreateSessionInput) (Session, error) {
	return s.persist(ctx, Session{
		Owner:         input.Owner,
		Equipment:     input.Equipment,
		Repetitions:   input.Repetitions,
		RestIntervals: []int{},
	}, SourceAPI)
}

// ListByOwner returns every session recorded for owner, newest first.
func (s *Service) ListByOwner(ctx context.Context, owner string) ([]Session, error) {
	sessions, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	if sessions == nil {
		sessions = []Session{}
	}
	return sessions, nil
}

func (s *Service) persist(ctx context.Context, session Session, source Source) (Session, error) {
	session = session.Clone()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.RecordedAt.IsZero() {
		session.RecordedAt = s.clock.Now().UTC()
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return Session{}, &PersistenceError{Op: "create", Err: err}
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, session, source); err != nil {
		s.logger.Warn().Err(err).Str("session_id", session.ID).Str("source", string(source)).Msg("session event publish failed")
	}
	return session, nil
}
