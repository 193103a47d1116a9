//go:build integration

package postgres

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/training/internal/domain"
	"example.com/training/internal/testsupport"
)

func TestRepositoryRoundTripsSessions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn := testsupport.StartPostgres(ctx, t)
	repo, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close(context.Background()) })

	require.Eventually(t, func() bool { return repo.Prepare(ctx) == nil }, 30*time.Second, 500*time.Millisecond)

	owner := uuid.NewString()
	older := domain.Session{
		ID:            uuid.NewString(),
		Owner:         owner,
		Equipment:     "LegPress",
		Repetitions:   []int{12},
		RestIntervals: []int{45},
		TotalDuration: "03:10",
		RecordedAt:    time.Date(2026, time.March, 3, 18, 0, 0, 0, time.UTC),
	}
	newer := domain.Session{
		ID:            uuid.NewString(),
		Owner:         owner,
		Equipment:     "LegPress",
		Repetitions:   []int{10, math.MaxInt},
		RestIntervals: []int{},
		RecordedAt:    older.RecordedAt.Add(time.Hour),
	}
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))
	require.NoError(t, repo.Create(ctx, domain.Session{ID: uuid.NewString(), Owner: "other", Repetitions: []int{1}, RecordedAt: newer.RecordedAt}))

	sessions, err := repo.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, []domain.Session{newer, older}, sessions)

	empty, err := repo.ListByOwner(ctx, uuid.NewString())
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)
}
