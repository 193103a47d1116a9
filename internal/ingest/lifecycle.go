package ingest

import (
	"errors"
	"fmt"
	"sync"
)

// State is the broker connection state of the worker.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected // connected, subscription not (yet) established
	StateSubscribed
	StateOffline // connection lost or refused, waiting to redial
	StateStopped
)

var stateNames = map[State]string{
	StateDisconnected: "disconnected",
	StateConnecting:   "connecting",
	StateConnected:    "connected",
	StateSubscribed:   "subscribed",
	StateOffline:      "offline",
	StateStopped:      "stopped",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Event drives a lifecycle transition.
type Event int

const (
	EventDial Event = iota
	EventConnected
	EventConnectFailed
	EventSubscribed
	EventSubscribeFailed
	EventConnectionLost
	EventShutdown
)

var eventNames = map[Event]string{
	EventDial:            "dial",
	EventConnected:       "connected",
	EventConnectFailed:   "connect_failed",
	EventSubscribed:      "subscribed",
	EventSubscribeFailed: "subscribe_failed",
	EventConnectionLost:  "connection_lost",
	EventShutdown:        "shutdown",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// ErrInvalidTransition is returned when an event is not accepted in the current state.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

var transitions = map[State]map[Event]State{
	StateDisconnected: {
		EventDial:     StateConnecting,
		EventShutdown: StateStopped,
	},
	StateConnecting: {
		EventConnected:     StateConnected,
		EventConnectFailed: StateOffline,
		EventShutdown:      StateStopped,
	},
	StateConnected: {
		EventSubscribed:      StateSubscribed,
		EventSubscribeFailed: StateConnected,
		EventConnectionLost:  StateOffline,
		EventShutdown:        StateStopped,
	},
	StateSubscribed: {
		EventConnectionLost: StateOffline,
		EventShutdown:       StateStopped,
	},
	StateOffline: {
		EventDial:     StateConnecting,
		EventShutdown: StateStopped,
	},
}

// TransitionFunc observes an accepted transition.
type TransitionFunc func(from, to State, evt Event)

// Lifecycle holds the connection state and is the single place it changes.
type Lifecycle struct {
	mu        sync.Mutex
	state     State
	observers []TransitionFunc
}

// NewLifecycle returns a Lifecycle in StateDisconnected.
func NewLifecycle(observers ...TransitionFunc) *Lifecycle {
	return &Lifecycle{state: StateDisconnected, observers: observers}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Dispatch applies evt. On an invalid transition the state is left unchanged.
func (l *Lifecycle) Dispatch(evt Event) (State, error) {
	l.mu.Lock()
	from := l.state
	to, ok := transitions[from][evt]
	if !ok {
		l.mu.Unlock()
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, evt, from)
	}
	l.state = to
	observers := l.observers
	l.mu.Unlock()

	for _, observe := range observers {
		observe(from, to, evt)
	}
	return to, nil
}
