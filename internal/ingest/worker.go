// Package ingest keeps a subscription to the equipment telemetry feed and
// persists completed sets as sessions.
package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"example.com/training/internal/domain"
	"example.com/training/internal/telemetry"
)

// Normalizer turns a raw payload into a session; ok is false for telemetry
// that must be ignored.
type Normalizer interface {
	Normalize(raw []byte, now time.Time) (session domain.Session, ok bool, err error)
}

var _ Normalizer = (*telemetry.Normalizer)(nil)

// Recorder persists normalized sessions.
type Recorder interface {
	Record(ctx context.Context, session domain.Session) (domain.Session, error)
}

// Config holds the subscription settings.
type Config struct {
	Topic             string
	ClientIDPrefix    string
	ReconnectInterval time.Duration
	BufferSize        int
}

// Option configures optional behaviour for the Worker.
type Option func(*Worker)

// WithLogger overrides the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

// WithClock overrides the clock used for reconnect waits and receive timestamps.
func WithClock(clock quartz.Clock) Option {
	return func(w *Worker) { w.clock = clock }
}

// WithClientIDFunc overrides how per-attempt client ids are generated.
func WithClientIDFunc(fn func() string) Option {
	return func(w *Worker) { w.newClientID = fn }
}

// Worker owns the broker connection lifecycle and a single consumer loop.
type Worker struct {
	dialer     Dialer
	normalizer Normalizer
	recorder   Recorder
	cfg        Config

	logger      zerolog.Logger
	clock       quartz.Clock
	newClientID func() string
	lifecycle   *Lifecycle
	inbox       chan Message
}

// NewWorker constructs a Worker. Zero config values fall back to a 1s
// reconnect interval and a 64 message inbox.
func NewWorker(dialer Dialer, normalizer Normalizer, recorder Recorder, cfg Config, opts ...Option) *Worker {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}

	w := &Worker{
		dialer:     dialer,
		normalizer: normalizer,
		recorder:   recorder,
		cfg:        cfg,
		logger:     zerolog.Nop(),
		clock:      quartz.NewReal(),
	}
	w.newClientID = func() string { return randomClientID(w.cfg.ClientIDPrefix) }
	for _, opt := range opts {
		opt(w)
	}
	w.inbox = make(chan Message, cfg.BufferSize)
	w.lifecycle = NewLifecycle(w.observeTransition)
	recordState(StateStopped, StateDisconnected)
	return w
}

// State reports the current connection state.
func (w *Worker) State() State {
	return w.lifecycle.State()
}

// Run connects, subscribes and processes messages until ctx is cancelled. It
// always returns ctx.Err().
func (w *Worker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.consume(ctx)
	}()

	w.supervise(ctx)
	wg.Wait()
	w.dispatch(EventShutdown)
	return ctx.Err()
}

// supervise drives the connection state machine: dial, subscribe, wait for the
// connection to drop, back off, redial. It never gives up.
func (w *Worker) supervise(ctx context.Context) {
	pacing := backoff.NewConstantBackOff(w.cfg.ReconnectInterval)

	for ctx.Err() == nil {
		w.dispatch(EventDial)
		clientID := w.newClientID()
		lost := make(chan error, 1)

		connectAttemptsCounter.Inc()
		w.logger.Info().Str("client_id", clientID).Msg("connecting to broker")

		conn, err := w.dialer.Dial(ctx, DialOptions{
			ClientID:  clientID,
			OnMessage: func(msg Message) { w.enqueue(ctx, msg) },
			OnConnectionLost: func(err error) {
				select {
				case lost <- err:
				default:
				}
			},
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error().Err(&TransportError{Op: "connect", Err: err}).Str("client_id", clientID).Msg("broker connection failed")
			w.dispatch(EventConnectFailed)
		} else {
			w.dispatch(EventConnected)
			w.logger.Info().Str("client_id", clientID).Msg("connected to broker")
			w.subscribe(ctx, conn)

			select {
			case <-ctx.Done():
				conn.Close()
				return
			case lostErr := <-lost:
				connectionLostCounter.Inc()
				w.logger.Warn().Err(&TransportError{Op: "connection", Err: lostErr}).Str("client_id", clientID).Msg("broker offline, reconnecting")
				w.dispatch(EventConnectionLost)
				conn.Close()
			}
		}

		if !w.wait(ctx, pacing.NextBackOff()) {
			return
		}
	}
}

func (w *Worker) subscribe(ctx context.Context, conn Conn) {
	if err := conn.Subscribe(ctx, w.cfg.Topic); err != nil {
		subscribeErrorCounter.Inc()
		w.logger.Error().Err(&TransportError{Op: "subscribe", Err: err}).Str("topic", w.cfg.Topic).Msg("subscription failed; retrying after next reconnect")
		w.dispatch(EventSubscribeFailed)
		return
	}
	w.logger.Info().Str("topic", w.cfg.Topic).Msg("listening for telemetry")
	w.dispatch(EventSubscribed)
}

func (w *Worker) wait(ctx context.Context, d time.Duration) bool {
	timer := w.clock.NewTimer(d, "ingest", "reconnect")
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// enqueue hands a message to the consumer loop. It never blocks the
// transport: when the inbox is full the message is dropped and counted.
func (w *Worker) enqueue(ctx context.Context, msg Message) {
	if ctx.Err() != nil {
		return
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = w.clock.Now()
	}
	select {
	case w.inbox <- msg:
	default:
		recordOutcome(outcomeDropped)
		w.logger.Warn().Str("topic", msg.Topic).Int("capacity", cap(w.inbox)).Msg("inbox full, telemetry dropped")
	}
}

func (w *Worker) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.inbox:
			w.handle(ctx, msg)
		}
	}
}

// handle runs one message through the normalizer and the store. Every failure
// is terminal to the message only.
func (w *Worker) handle(ctx context.Context, msg Message) {
	logger := w.logger.With().Str("topic", msg.Topic).Logger()
	defer func() {
		if r := recover(); r != nil {
			recordOutcome(outcomePanic)
			logger.Error().Interface("panic", r).Msg("telemetry handler panicked")
		}
	}()

	logger.Debug().Bytes("payload", msg.Payload).Msg("telemetry received")

	session, ok, err := w.normalizer.Normalize(msg.Payload, msg.ReceivedAt)
	if err != nil {
		recordOutcome(outcomeDecodeError)
		logger.Error().Err(err).Msg("telemetry decode failed")
		return
	}
	if !ok {
		recordOutcome(outcomeIgnored)
		logger.Debug().Msg("telemetry ignored: set not finished")
		return
	}

	stored, err := w.recorder.Record(ctx, session)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		recordOutcome(outcomePersistError)
		logger.Error().Err(err).Str("owner", session.Owner).Msg("session persist failed")
		return
	}

	recordSessionStored(stored.RecordedAt)
	logger.Info().Str("owner", stored.Owner).Str("session_id", stored.ID).Ints("repetitions", stored.Repetitions).Msg("session stored")
}

func (w *Worker) dispatch(evt Event) {
	if _, err := w.lifecycle.Dispatch(evt); err != nil {
		w.logger.Error().Err(err).Msg("lifecycle")
	}
}

func (w *Worker) observeTransition(from, to State, evt Event) {
	recordState(from, to)
	w.logger.Debug().Stringer("from", from).Stringer("to", to).Stringer("event", evt).Msg("connection state changed")
}

// randomClientID returns prefix followed by eight random hex characters.
func randomClientID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
