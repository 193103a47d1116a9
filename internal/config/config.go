// Package config centralises configuration parsing for the training service.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingStoreURI is returned when no persistence DSN is configured.
var ErrMissingStoreURI = errors.New("MONGO_URI is required")

// Config captures runtime configuration values for the training service.
type Config struct {
	Port           string
	MetricsAddress string

	StoreURI      string
	StoreDatabase string

	BrokerURL         string
	Topic             string
	ClientIDPrefix    string
	ConnectTimeout    time.Duration
	ReconnectInterval time.Duration
	BrokerUsername    string
	BrokerPassword    string
	IngestBuffer      int

	DefaultEquipment string
	DefaultOwner     string

	KafkaBrokers       []string
	SessionEventsTopic string

	CORSAllowedOrigins []string

	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file and then environment variables into Config.
func Load() (Config, error) {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	cfg := Config{
		Port:               getEnv("PORT", "3000"),
		MetricsAddress:     getEnv("METRICS_ADDRESS", ":9195"),
		StoreURI:           getEnv("MONGO_URI", ""),
		StoreDatabase:      getEnv("MONGO_DATABASE", "training"),
		BrokerURL:          normalizeBrokerURL(getEnv("MQTT_BROKER_URL", "tcp://broker.hivemq.com:1883")),
		Topic:              getEnv("MQTT_TOPIC", "academia/+/contador"),
		ClientIDPrefix:     getEnv("MQTT_CLIENT_PREFIX", "training-backend-"),
		ConnectTimeout:     getDurationEnv("MQTT_CONNECT_TIMEOUT", 10*time.Second),
		ReconnectInterval:  getDurationEnv("MQTT_RECONNECT_INTERVAL", time.Second),
		BrokerUsername:     getEnv("MQTT_USERNAME", ""),
		BrokerPassword:     getEnv("MQTT_PASSWORD", ""),
		IngestBuffer:       getIntEnv("INGEST_BUFFER", 64),
		DefaultEquipment:   getEnv("DEFAULT_EQUIPMENT", "LegPress"),
		DefaultOwner:       getEnv("DEFAULT_OWNER", "unknown"),
		KafkaBrokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		SessionEventsTopic: getEnv("SESSION_EVENTS_TOPIC", "session_events"),
		CORSAllowedOrigins: splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration that would leave the service unable to start.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.StoreURI) == "" {
		errs = append(errs, ErrMissingStoreURI)
	}
	if strings.TrimSpace(c.Topic) == "" {
		errs = append(errs, errors.New("MQTT_TOPIC must not be empty"))
	}
	if c.ReconnectInterval <= 0 {
		errs = append(errs, errors.New("MQTT_RECONNECT_INTERVAL must be > 0"))
	}
	if c.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("MQTT_CONNECT_TIMEOUT must be > 0"))
	}
	return errors.Join(errs...)
}

// HTTPAddress returns the listen address derived from Port.
func (c Config) HTTPAddress() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// normalizeBrokerURL maps the mqtt:// scheme used by device firmware onto tcp://.
func normalizeBrokerURL(raw string) string {
	switch {
	case strings.HasPrefix(raw, "mqtt://"):
		return "tcp://" + strings.TrimPrefix(raw, "mqtt://")
	case strings.HasPrefix(raw, "mqtts://"):
		return "ssl://" + strings.TrimPrefix(raw, "mqtts://")
	case !strings.Contains(raw, "://"):
		return "tcp://" + raw
	}
	return raw
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
