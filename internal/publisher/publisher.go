package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"SignalPulse/internal/model"
)

// Publisher forwards emitted signals to a downstream stream.
type Publisher interface {
	Publish(ctx context.Context, sig *model.Signal) error
	Close() error
}

// Noop drops every signal. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, *model.Signal) error { return nil }
func (Noop) Close() error                                 { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes each signal as JSON, keyed by symbol so one
// instrument's signals stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher creates a synchronous writer for topic.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("brokers are required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: 50 * time.Millisecond,
	}
	log.Info().Strs("brokers", brokers).Str("topic", topic).Msg("kafka signal publisher ready")
	return &KafkaPublisher{writer: w, topic: topic}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, sig *model.Signal) error {
	v, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(sig.Symbol),
		Value: v,
		Time:  sig.Time,
		Headers: []kafka.Header{
			{Key: "signal-id", Value: []byte(sig.ID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish signal %s: %w", sig.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
