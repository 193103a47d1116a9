// Package api exposes HTTP handlers for recording and listing sessions.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/tidwall/gjson"

	"example.com/training/internal/domain"
)

// LivenessMessage is the body served on GET /.
const LivenessMessage = "Training API is online"

const maxBodyBytes = 1 << 20

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", liveness)
	r.Get("/healthz", healthz)
	r.Post("/sessions", h.createSession)
	r.Get("/sessions/{owner}", h.listSessions)
}

func liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, LivenessMessage)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read body")
		return
	}

	input, err := decodeCreateRequest(body)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("rejected session payload")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.service.Create(r.Context(), input)
	if err != nil {
		logFailure(hlog.FromRequest(r), err, "session create failed")
		writeError(w, http.StatusInternalServerError, "failed to save session")
		return
	}

	hlog.FromRequest(r).Info().Str("session_id", session.ID).Str("owner", session.Owner).Msg("session saved via api")
	writeJSON(w, http.StatusCreated, CreateSessionResponse{Message: "session saved", ID: session.ID})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed owner")
		return
	}

	sessions, err := h.service.ListByOwner(r.Context(), owner)
	if err != nil {
		logFailure(hlog.FromRequest(r), err, "session list failed")
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	items := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, toSessionView(s))
	}
	writeJSON(w, http.StatusOK, items)
}

// ownerParam returns the decoded {owner} segment. chi matches on RawPath when
// it is set, in which case the captured value is still escaped.
func ownerParam(r *http.Request) (string, error) {
	owner := chi.URLParam(r, "owner")
	if r.URL.RawPath == "" {
		return owner, nil
	}
	return url.PathUnescape(owner)
}

// CreateSessionResponse describes the response body for create.
type CreateSessionResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// SessionView is the wire shape of a stored session.
type SessionView struct {
	ID            string    `json:"id"`
	Owner         string    `json:"owner"`
	Equipment     string    `json:"equipment"`
	Repetitions   []int     `json:"repetitions"`
	RestIntervals []int     `json:"restIntervals"`
	TotalDuration string    `json:"totalDuration,omitempty"`
	RecordedAt    time.Time `json:"recordedAt"`
}

func toSessionView(s domain.Session) SessionView {
	s = s.Clone()
	return SessionView{
		ID:            s.ID,
		Owner:         s.Owner,
		Equipment:     s.Equipment,
		Repetitions:   s.Repetitions,
		RestIntervals: s.RestIntervals,
		TotalDuration: s.TotalDuration,
		RecordedAt:    s.RecordedAt,
	}
}

// decodeCreateRequest coerces {owner, equipment, repetitions}. Scalars are
// accepted where strings are expected and a single number where a list is.
func decodeCreateRequest(body []byte) (domain.CreateSessionInput, error) {
	if !gjson.ValidBytes(body) {
		return domain.CreateSessionInput{}, &domain.ValidationError{Reason: "body is not valid JSON"}
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return domain.CreateSessionInput{}, &domain.ValidationError{Reason: "body must be a JSON object"}
	}

	reps, err := coerceInts(doc.Get("repetitions"))
	if err != nil {
		return domain.CreateSessionInput{}, err
	}
	return domain.CreateSessionInput{
		Owner:       scalarString(doc.Get("owner")),
		Equipment:   scalarString(doc.Get("equipment")),
		Repetitions: reps,
	}, nil
}

func scalarString(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		return r.Raw
	case gjson.True, gjson.False:
		return r.Raw
	}
	return ""
}

func coerceInts(r gjson.Result) ([]int, error) {
	if !r.Exists() || r.Type == gjson.Null {
		return []int{}, nil
	}
	values := []gjson.Result{r}
	if r.IsArray() {
		values = r.Array()
	}

	out := make([]int, 0, len(values))
	for i, v := range values {
		n, err := coerceInt(v)
		if err != nil {
			return nil, &domain.ValidationError{Field: "repetitions", Reason: "element " + strconv.Itoa(i) + " " + err.Error()}
		}
		out = append(out, n)
	}
	return out, nil
}

var (
	errNotANumber = errors.New("is not a number")
	errOutOfRange = errors.New("is out of range")
)

func coerceInt(r gjson.Result) (int, error) {
	var f float64
	switch r.Type {
	case gjson.Number:
		f = r.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil || math.IsNaN(parsed) {
			return 0, errNotANumber
		}
		f = parsed
	case gjson.True:
		return 1, nil
	case gjson.False:
		return 0, nil
	default:
		return 0, errNotANumber
	}
	if f >= math.MaxInt || f < math.MinInt {
		return 0, errOutOfRange
	}
	return int(f), nil
}

func logFailure(logger *zerolog.Logger, err error, msg string) {
	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		logger.Error().Err(perr.Err).Str("op", perr.Op).Msg(msg)
		return
	}
	logger.Error().Err(err).Msg(msg)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
