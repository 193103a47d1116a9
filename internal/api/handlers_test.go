package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"example.com/training/internal/domain"
	"example.com/training/internal/persistence/memory"
)

func TestCreateThenListSessions(t *testing.T) {
	clock := quartz.NewMock(t)
	clock.Set(time.Date(2026, time.March, 3, 18, 30, 0, 0, time.UTC))
	router := newTestRouter(t, memory.NewRepository(), domain.WithClock(clock))

	rr := do(router, http.MethodPost, "/sessions", `{"owner":"joao","equipment":"bench","repetitions":[10,8,6]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var created CreateSessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.NotEmpty(t, created.Message)

	rr = do(router, http.MethodGet, "/sessions/joao", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[{
		"id": "`+created.ID+`",
		"owner": "joao",
		"equipment": "bench",
		"repetitions": [10, 8, 6],
		"restIntervals": [],
		"recordedAt": "2026-03-03T18:30:00Z"
	}]`, rr.Body.String())
}

func TestListSessionsNewestFirst(t *testing.T) {
	clock := quartz.NewMock(t)
	start := time.Date(2026, time.March, 3, 18, 0, 0, 0, time.UTC)
	clock.Set(start)
	router := newTestRouter(t, memory.NewRepository(), domain.WithClock(clock))

	for i, body := range []string{
		`{"owner":"joao","equipment":"bench","repetitions":[1]}`,
		`{"owner":"joao","equipment":"bench","repetitions":[2]}`,
		`{"owner":"maria","equipment":"bench","repetitions":[3]}`,
	} {
		clock.Set(start.Add(time.Duration(i) * time.Minute))
		require.Equal(t, http.StatusCreated, do(router, http.MethodPost, "/sessions", body).Code)
	}

	rr := do(router, http.MethodGet, "/sessions/joao", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var sessions []SessionView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sessions))
	require.Len(t, sessions, 2)
	require.Equal(t, []int{2}, sessions[0].Repetitions)
	require.Equal(t, []int{1}, sessions[1].Repetitions)
}

func TestListUnknownOwnerReturnsEmptyArray(t *testing.T) {
	router := newTestRouter(t, memory.NewRepository())

	rr := do(router, http.MethodGet, "/sessions/nobody", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[]`, rr.Body.String())
}

func TestCreateCoercesLooseTypes(t *testing.T) {
	repo := memory.NewRepository()
	router := newTestRouter(t, repo)

	rr := do(router, http.MethodPost, "/sessions", `{"owner":42,"repetitions":"12"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	sessions, err := repo.ListByOwner(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, []int{12}, sessions[0].Repetitions)
	require.Equal(t, "", sessions[0].Equipment)
	require.Equal(t, []int{}, sessions[0].RestIntervals)
}

func TestCreateRejectsMalformedBodies(t *testing.T) {
	router := newTestRouter(t, memory.NewRepository())

	for _, body := range []string{
		`not json`,
		`[1,2,3]`,
		`{"owner":"joao","repetitions":["ten"]}`,
		`{"owner":"joao","repetitions":[{"n":1}]}`,
	} {
		rr := do(router, http.MethodPost, "/sessions", body)
		require.Equal(t, http.StatusBadRequest, rr.Code, body)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.NotEmpty(t, resp["error"], body)
	}
}

func TestListDecodesEscapedOwner(t *testing.T) {
	router := newTestRouter(t, memory.NewRepository())

	for _, tc := range []struct {
		owner string
		path  string
	}{
		{"a/b", "/sessions/a%2Fb"},
		{"Ana", "/sessions/%41na"},
		{"joão silva", "/sessions/jo%C3%A3o%20silva"},
		{"100%", "/sessions/100%25"},
		{"x/100%", "/sessions/x%2F100%25"},
	} {
		rr := do(router, http.MethodPost, "/sessions", `{"owner":"`+tc.owner+`","equipment":"bench","repetitions":[5]}`)
		require.Equal(t, http.StatusCreated, rr.Code, tc.owner)

		rr = do(router, http.MethodGet, tc.path, "")
		require.Equal(t, http.StatusOK, rr.Code, tc.path)

		var sessions []SessionView
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sessions))
		require.Len(t, sessions, 1, tc.path)
		require.Equal(t, tc.owner, sessions[0].Owner)
	}
}

func TestListRejectsMalformedEscapes(t *testing.T) {
	router := newTestRouter(t, memory.NewRepository())

	req := httptest.NewRequest(http.MethodGet, "/sessions/x", nil)
	req.URL.RawPath = "/sessions/%zz"
	req.URL.Path = "/sessions/%zz"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateRejectsOutOfRangeRepetitions(t *testing.T) {
	repo := memory.NewRepository()
	router := newTestRouter(t, repo)

	for _, body := range []string{
		`{"owner":"joao","repetitions":[1e19]}`,
		`{"owner":"joao","repetitions":["-1e300"]}`,
		`{"owner":"joao","repetitions":["Inf"]}`,
		`{"owner":"joao","repetitions":["NaN"]}`,
	} {
		rr := do(router, http.MethodPost, "/sessions", body)
		require.Equal(t, http.StatusBadRequest, rr.Code, body)
	}

	sessions, err := repo.ListByOwner(context.Background(), "joao")
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestStoreFailuresReturn500(t *testing.T) {
	router := newTestRouter(t, failingRepo{err: errors.New("connection refused")})

	rr := do(router, http.MethodPost, "/sessions", `{"owner":"joao","equipment":"bench","repetitions":[10]}`)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.JSONEq(t, `{"error":"failed to save session"}`, rr.Body.String())

	rr = do(router, http.MethodGet, "/sessions/joao", "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.JSONEq(t, `{"error":"failed to list sessions"}`, rr.Body.String())
}

func TestLivenessAndHealth(t *testing.T) {
	router := newTestRouter(t, memory.NewRepository())

	rr := do(router, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, LivenessMessage, rr.Body.String())
	require.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain"))

	rr = do(router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestMetricsEndpointMounted(t *testing.T) {
	router := newTestRouter(t, memory.NewRepository())

	rr := do(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, memory.NewRepository())

	req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func newTestRouter(t *testing.T, repo domain.SessionRepository, opts ...domain.ServiceOption) http.Handler {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t))
	service := domain.NewService(repo, opts...)
	return NewRouter(NewHandler(service), RouterConfig{Logger: logger})
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

type failingRepo struct {
	err error
}

func (r failingRepo) Create(context.Context, domain.Session) error { return r.err }

func (r failingRepo) ListByOwner(context.Context, string) ([]domain.Session, error) {
	return nil, r.err
}
