package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"example.com/training/internal/ingest"
)

func TestDialUnreachableBrokerFails(t *testing.T) {
	d := NewDialer(Config{BrokerURL: "tcp://127.0.0.1:1", ConnectTimeout: 2 * time.Second}, zerolog.New(zerolog.NewTestWriter(t)))

	conn, err := d.Dial(context.Background(), ingest.DialOptions{ClientID: "training-backend-test"})
	require.Error(t, err)
	require.Nil(t, conn)
	require.Contains(t, err.Error(), "tcp://127.0.0.1:1")
}

func TestAwaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := await(ctx, pendingToken{done: make(chan struct{})}, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAwaitTimesOut(t *testing.T) {
	err := await(context.Background(), pendingToken{done: make(chan struct{})}, 10*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestAwaitReturnsTokenError(t *testing.T) {
	done := make(chan struct{})
	close(done)
	err := await(context.Background(), pendingToken{done: done, err: errors.New("not authorized")}, time.Second)
	require.EqualError(t, err, "not authorized")
}

type pendingToken struct {
	done chan struct{}
	err  error
}

func (p pendingToken) Wait() bool                     { <-p.done; return true }
func (p pendingToken) WaitTimeout(time.Duration) bool { return false }
func (p pendingToken) Done() <-chan struct{}          { return p.done }
func (p pendingToken) Error() error                   { return p.err }
