package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeStored       = "stored"
	outcomeIgnored      = "ignored"
	outcomeDecodeError  = "decode_error"
	outcomePersistError = "persist_error"
	outcomePanic        = "panic"
	outcomeDropped      = "dropped"
)

var (
	messagesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "training",
		Subsystem: "ingest",
		Name:      "messages_total",
		Help:      "Telemetry messages handled, by outcome.",
	}, []string{"outcome"})

	connectionStateGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "training",
		Subsystem: "ingest",
		Name:      "connection_state",
		Help:      "1 for the current broker connection state, 0 otherwise.",
	}, []string{"state"})

	connectAttemptsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "training",
		Subsystem: "ingest",
		Name:      "connect_attempts_total",
		Help:      "Broker connection attempts, each with a fresh client id.",
	})

	connectionLostCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "training",
		Subsystem: "ingest",
		Name:      "connection_lost_total",
		Help:      "Established broker connections that were lost.",
	})

	subscribeErrorCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "training",
		Subsystem: "ingest",
		Name:      "subscribe_errors_total",
		Help:      "Failed topic subscriptions.",
	})

	lastSessionGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "training",
		Subsystem: "ingest",
		Name:      "last_session_timestamp_seconds",
		Help:      "Unix timestamp of the most recent session stored from telemetry.",
	})
)

func init() {
	prometheus.MustRegister(messagesCounter, connectionStateGauge, connectAttemptsCounter, connectionLostCounter, subscribeErrorCounter, lastSessionGauge)
}

func recordOutcome(outcome string) {
	messagesCounter.WithLabelValues(outcome).Inc()
}

func recordState(from, to State) {
	connectionStateGauge.WithLabelValues(from.String()).Set(0)
	connectionStateGauge.WithLabelValues(to.String()).Set(1)
}

func recordSessionStored(ts time.Time) {
	recordOutcome(outcomeStored)
	if !ts.IsZero() {
		lastSessionGauge.Set(float64(ts.Unix()))
	}
}
