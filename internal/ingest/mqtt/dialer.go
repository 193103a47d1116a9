// Package mqtt adapts the Eclipse Paho client to the ingest transport.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"example.com/training/internal/ingest"
)

// ErrTimeout is returned when the broker does not answer within ConnectTimeout.
var ErrTimeout = errors.New("mqtt: timed out waiting for broker")

// subscribeFailure is the SUBACK return code for a rejected subscription.
const subscribeFailure = 0x80

// Config holds broker connection settings.
type Config struct {
	BrokerURL      string
	Username       string
	Password       string
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
	QoS            byte
}

// Dialer opens one Paho client per attempt. Paho's own reconnect logic is
// disabled because every attempt must present a new client id.
type Dialer struct {
	cfg    Config
	logger zerolog.Logger
}

var _ ingest.Dialer = (*Dialer)(nil)

// NewDialer constructs a Dialer.
func NewDialer(cfg Config, logger zerolog.Logger) *Dialer {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 30 * time.Second
	}
	return &Dialer{cfg: cfg, logger: logger}
}

// Dial connects with opts.ClientID and returns once the broker has acknowledged
// the session.
func (d *Dialer) Dial(ctx context.Context, opts ingest.DialOptions) (ingest.Conn, error) {
	c := &conn{
		qos:       d.cfg.QoS,
		timeout:   d.cfg.ConnectTimeout,
		onMessage: opts.OnMessage,
	}

	var lostOnce sync.Once
	clientOpts := paho.NewClientOptions().
		AddBroker(d.cfg.BrokerURL).
		SetClientID(opts.ClientID).
		SetUsername(d.cfg.Username).
		SetPassword(d.cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(true).
		SetKeepAlive(d.cfg.KeepAlive).
		SetConnectTimeout(d.cfg.ConnectTimeout).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			if opts.OnConnectionLost == nil {
				return
			}
			lostOnce.Do(func() { opts.OnConnectionLost(err) })
		})

	c.client = paho.NewClient(clientOpts)
	if err := await(ctx, c.client.Connect(), d.cfg.ConnectTimeout); err != nil {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("connect %s: %w", d.cfg.BrokerURL, err)
	}
	d.logger.Debug().Str("broker", d.cfg.BrokerURL).Str("client_id", opts.ClientID).Msg("mqtt session established")
	return c, nil
}

type conn struct {
	client    paho.Client
	qos       byte
	timeout   time.Duration
	onMessage func(ingest.Message)
}

func (c *conn) Subscribe(ctx context.Context, topic string) error {
	token := c.client.Subscribe(topic, c.qos, func(_ paho.Client, msg paho.Message) {
		if c.onMessage == nil {
			return
		}
		c.onMessage(ingest.Message{Topic: msg.Topic(), Payload: msg.Payload()})
	})
	if err := await(ctx, token, c.timeout); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	if st, ok := token.(*paho.SubscribeToken); ok {
		if code, found := st.Result()[topic]; found && code == subscribeFailure {
			return fmt.Errorf("subscribe %s: rejected by broker", topic)
		}
	}
	return nil
}

func (c *conn) Close() {
	c.client.Disconnect(250)
}

func await(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTimeout
	}
}
