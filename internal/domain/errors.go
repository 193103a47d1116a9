package domain

import "fmt"

// ValidationError reports a create request that could not be coerced into a session.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid session: " + e.Reason
	}
	return fmt.Sprintf("invalid session: %s %s", e.Field, e.Reason)
}

// PersistenceError wraps a failure returned by the session store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("session store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
