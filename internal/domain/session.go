package domain

import "time"

// Session is the persisted record of one workout session on a machine.
type Session struct {
	ID            string
	Owner         string
	Equipment     string
	Repetitions   []int // one entry per completed set, in set order
	RestIntervals []int // seconds rested after each set; may be shorter than Repetitions
	TotalDuration string
	RecordedAt    time.Time
}

// Source identifies which ingestion path produced a session.
type Source string

const (
	SourceTelemetry Source = "telemetry"
	SourceAPI       Source = "api"
)

// Clone returns a copy that shares no slices with s.
func (s Session) Clone() Session {
	out := s
	out.Repetitions = cloneInts(s.Repetitions)
	out.RestIntervals = cloneInts(s.RestIntervals)
	return out
}

func cloneInts(values []int) []int {
	out := make([]int, len(values))
	copy(out, values)
	return out
}
