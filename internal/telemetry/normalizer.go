// Package telemetry turns raw equipment telemetry into session records.
package telemetry

import (
	"errors"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"example.com/training/internal/domain"
)

const (
	// StatusFinished marks the message a device sends when a set is complete.
	StatusFinished = "finalizado"

	DefaultOwner         = "unknown"
	DefaultEquipment     = "LegPress"
	DefaultTotalDuration = "00:00"
)

var (
	ErrInvalidJSON = errors.New("payload is not valid JSON")
	ErrNotAnObject = errors.New("payload is not a JSON object")
)

// DecodeError reports a telemetry payload that could not be parsed.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode telemetry: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// Payload is the decoded form of a device message. Absent or falsy fields hold
// their zero value.
type Payload struct {
	Status    string
	Reps      int
	UserID    string
	RestTime  int
	TotalTime string
}

// Decode parses a JSON object. Invalid UTF-8 sequences are replaced with
// U+FFFD. Numeric fields accept numbers or numeric strings and are truncated
// toward zero.
func Decode(raw []byte) (Payload, error) {
	if !utf8.Valid(raw) {
		raw = []byte(strings.ToValidUTF8(string(raw), "\uFFFD"))
	}
	if !gjson.ValidBytes(raw) {
		return Payload{}, &DecodeError{Err: ErrInvalidJSON}
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return Payload{}, &DecodeError{Err: ErrNotAnObject}
	}

	fields := doc.Map()
	p := Payload{
		UserID:    truthyString(fields["userId"]),
		TotalTime: truthyString(fields["totalTime"]),
		Reps:      intValue(fields["reps"]),
		RestTime:  intValue(fields["restTime"]),
	}
	if status := fields["status"]; status.Type == gjson.String {
		p.Status = status.Str
	}
	return p, nil
}

// Normalizer maps telemetry payloads onto session records.
type Normalizer struct {
	DefaultOwner string
	Equipment    string
}

// NewNormalizer returns a Normalizer, substituting package defaults for empty values.
func NewNormalizer(defaultOwner, equipment string) *Normalizer {
	if strings.TrimSpace(defaultOwner) == "" {
		defaultOwner = DefaultOwner
	}
	if strings.TrimSpace(equipment) == "" {
		equipment = DefaultEquipment
	}
	return &Normalizer{DefaultOwner: defaultOwner, Equipment: equipment}
}

// Normalize decodes raw and builds a single-set session. ok is false, with a nil
// error, for in-progress telemetry that must not produce a record.
func (n *Normalizer) Normalize(raw []byte, now time.Time) (domain.Session, bool, error) {
	p, err := Decode(raw)
	if err != nil {
		return domain.Session{}, false, err
	}
	session, ok := n.FromPayload(p, now)
	return session, ok, nil
}

// FromPayload applies the completion guard and the defaulting policy.
func (n *Normalizer) FromPayload(p Payload, now time.Time) (domain.Session, bool) {
	if p.Status != StatusFinished || p.Reps <= 0 {
		return domain.Session{}, false
	}

	owner := p.UserID
	if owner == "" {
		owner = n.DefaultOwner
	}
	total := p.TotalTime
	if total == "" {
		total = DefaultTotalDuration
	}

	return domain.Session{
		Owner:         owner,
		Equipment:     n.Equipment,
		Repetitions:   []int{p.Reps},
		RestIntervals: []int{p.RestTime},
		TotalDuration: total,
		RecordedAt:    now.UTC(),
	}, true
}

// truthyString renders a scalar as text. false, null, 0, "" and non-scalars are
// treated as absent.
func truthyString(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		if r.Num == 0 {
			return ""
		}
		return r.Raw
	case gjson.True:
		return "true"
	}
	return ""
}

func intValue(r gjson.Result) int {
	switch r.Type {
	case gjson.Number, gjson.String:
		return Truncate(r.Float())
	case gjson.True:
		return 1
	}
	return 0
}

// Truncate converts f to an int toward zero, saturating at the int range.
// NaN yields 0.
func Truncate(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}
