package ingest

import (
	"context"
	"fmt"
	"time"
)

// Message is one inbound publish from the broker.
type Message struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// DialOptions are the per-attempt parameters handed to a Dialer.
type DialOptions struct {
	ClientID string
	// OnMessage is called from the transport for every message on a subscribed
	// topic. It does not block.
	OnMessage func(Message)
	// OnConnectionLost is called at most once when an established connection drops.
	OnConnectionLost func(error)
}

// Dialer opens broker connections.
type Dialer interface {
	Dial(ctx context.Context, opts DialOptions) (Conn, error)
}

// Conn is one established broker connection.
type Conn interface {
	Subscribe(ctx context.Context, topic string) error
	Close()
}

// TransportError wraps a broker-side failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("broker %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
