package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"

	"example.com/training/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes SessionRecorded events to a topic, keyed by owner so a
// member's sessions stay ordered within a partition.
type KafkaPublisher struct {
	topic     string
	newWriter func() messageWriter

	once   sync.Once
	mu     sync.Mutex
	writer messageWriter
}

var _ domain.Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher. The underlying writer is created on
// first publish.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return newPublisher(func() messageWriter {
		return &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Snappy,
			Async:        false,
		}
	}, topic)
}

func newPublisher(newWriter func() messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{topic: topic, newWriter: newWriter}
}

// Publish implements domain.Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, session domain.Session, source domain.Source) error {
	payload, err := json.Marshal(NewSessionRecorded(session, source))
	if err != nil {
		return fmt.Errorf("marshal %s: %w", SessionRecordedType, err)
	}

	msg := kafka.Message{
		Key:   []byte(session.Owner),
		Value: payload,
		Time:  session.RecordedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(SessionRecordedType)},
			{Key: "source", Value: []byte(source)},
		},
	}
	if err := p.writerOnce().WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", SessionRecordedType, p.topic, err)
	}
	return nil
}

// Close releases the writer if one was created.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func (p *KafkaPublisher) writerOnce() messageWriter {
	p.once.Do(func() {
		p.mu.Lock()
		p.writer = p.newWriter()
		p.mu.Unlock()
	})
	return p.writer
}

// NoopPublisher discards events. Used when no Kafka brokers are configured.
type NoopPublisher struct{}

// Publish implements domain.Publisher.
func (NoopPublisher) Publish(context.Context, domain.Session, domain.Source) error { return nil }

// Close implements io.Closer.
func (NoopPublisher) Close() error { return nil }
