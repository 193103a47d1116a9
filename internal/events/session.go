// Package events defines the session fan-out payloads and their publishers.
package events

import (
	"time"

	"example.com/training/internal/domain"
)

// SessionRecordedType is the event_type header value for SessionRecorded.
const SessionRecordedType = "session.recorded"

// SessionRecorded is emitted after a session has been persisted.
type SessionRecorded struct {
	SessionID     string    `json:"session_id"`
	Owner         string    `json:"owner"`
	Equipment     string    `json:"equipment"`
	Repetitions   []int     `json:"repetitions"`
	RestIntervals []int     `json:"rest_intervals"`
	TotalDuration string    `json:"total_duration,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
	Source        string    `json:"source"`
}

// NewSessionRecorded builds the event for a stored session.
func NewSessionRecorded(session domain.Session, source domain.Source) SessionRecorded {
	s := session.Clone()
	return SessionRecorded{
		SessionID:     s.ID,
		Owner:         s.Owner,
		Equipment:     s.Equipment,
		Repetitions:   s.Repetitions,
		RestIntervals: s.RestIntervals,
		TotalDuration: s.TotalDuration,
		RecordedAt:    s.RecordedAt.UTC(),
		Source:        string(source),
	}
}
