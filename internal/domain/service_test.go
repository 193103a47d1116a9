package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
)

func TestServiceCreateLeavesTelemetryFieldsEmpty(t *testing.T) {
	clock := quartz.NewMock(t)
	now := time.Date(2026, time.March, 3, 18, 30, 0, 0, time.UTC)
	clock.Set(now)

	repo := &stubRepo{}
	publisher := &stubPublisher{}
	service := NewService(repo, WithClock(clock), WithPublisher(publisher))

	session, err := service.Create(context.Background(), CreateSessionInput{
		Owner:       "joao",
		Equipment:   "bench",
		Repetitions: []int{10, 8, 6},
	})
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	require.Equal(t, now, session.RecordedAt)
	require.Equal(t, []int{10, 8, 6}, session.Repetitions)
	require.NotNil(t, session.RestIntervals)
	require.Empty(t, session.RestIntervals)
	require.Empty(t, session.TotalDuration)

	require.Len(t, repo.created, 1)
	require.Equal(t, session, repo.created[0])
	require.Equal(t, []Source{SourceAPI}, publisher.sources)
}

func TestServiceRecordKeepsSuppliedTimestamp(t *testing.T) {
	recordedAt := time.Date(2025, time.March, 3, 7, 0, 0, 0, time.UTC)
	publisher := &stubPublisher{}
	service := NewService(&stubRepo{}, WithPublisher(publisher))

	session, err := service.Record(context.Background(), Session{
		Owner:       "maria",
		Equipment:   "LegPress",
		Repetitions: []int{12},
		RecordedAt:  recordedAt,
	})
	require.NoError(t, err)
	require.Equal(t, recordedAt, session.RecordedAt)
	require.Equal(t, []Source{SourceTelemetry}, publisher.sources)
}

func TestServiceWrapsStoreFailures(t *testing.T) {
	publisher := &stubPublisher{}
	service := NewService(&stubRepo{err: errors.New("connection refused")}, WithPublisher(publisher))

	_, err := service.Create(context.Background(), CreateSessionInput{Owner: "joao"})
	var persistErr *PersistenceError
	require.ErrorAs(t, err, &persistErr)
	require.Equal(t, "create", persistErr.Op)
	require.Empty(t, publisher.sources, "nothing is published for a failed write")

	_, err = service.ListByOwner(context.Background(), "joao")
	require.ErrorAs(t, err, &persistErr)
	require.Equal(t, "list", persistErr.Op)
}

func TestServicePublishFailureDoesNotFailWrite(t *testing.T) {
	repo := &stubRepo{}
	service := NewService(repo, WithPublisher(&stubPublisher{err: errors.New("broker down")}))

	_, err := service.Record(context.Background(), Session{Owner: "maria", Repetitions: []int{5}})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
}

func TestServiceListByOwnerNeverReturnsNil(t *testing.T) {
	service := NewService(&stubRepo{})

	sessions, err := service.ListByOwner(context.Background(), "nobody")
	require.NoError(t, err)
	require.NotNil(t, sessions)
	require.Empty(t, sessions)
}

type stubRepo struct {
	created []Session
	err     error
}

func (r *stubRepo) Create(_ context.Context, session Session) error {
	if r.err != nil {
		return r.err
	}
	r.created = append(r.created, session)
	return nil
}

func (r *stubRepo) ListByOwner(context.Context, string) ([]Session, error) {
	if r.err != nil {
		return nil, r.err
	}
	return nil, nil
}

type stubPublisher struct {
	sources []Source
	err     error
}

func (p *stubPublisher) Publish(_ context.Context, _ Session, source Source) error {
	if p.err != nil {
		return p.err
	}
	p.sources = append(p.sources, source)
	return nil
}
