package auditsink

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/MrEthical07/pinauth"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrNoBrokers is returned by NewKafkaSink when no broker address is configured.
var ErrNoBrokers = errors.New("auditsink: no kafka brokers")

// MessageWriter is the subset of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures a [KafkaSink].
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

// KafkaSink publishes audit events to a Kafka topic.
type KafkaSink struct {
	writer       MessageWriter
	topic        string
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewKafkaSink builds a sink over a kafka-go Writer. Topic defaults to
// "pinauth.audit".
func NewKafkaSink(cfg KafkaConfig, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Topic == "" {
		cfg.Topic = "pinauth.audit"
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		BatchSize:    100,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	s := NewKafkaSinkFromWriter(w, "", logger)
	s.writeTimeout = cfg.WriteTimeout
	return s, nil
}

// NewKafkaSinkFromWriter wraps an existing writer. topic is set on every message
// when non-empty; leave it empty when the writer carries its own topic.
func NewKafkaSinkFromWriter(w MessageWriter, topic string, logger *zap.Logger) *KafkaSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaSink{writer: w, topic: topic, writeTimeout: 5 * time.Second, logger: logger}
}

// Emit publishes event. Delivery failures are logged and dropped.
func (s *KafkaSink) Emit(ctx context.Context, event pinauth.AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	value, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("audit event encode failed", zap.String("event_type", event.EventType), zap.Error(err))
		return
	}

	msg := kafka.Message{
		Topic: s.topic,
		Key:   []byte(event.PrincipalID),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	if s.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
		defer cancel()
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.logger.Error("audit event publish failed",
			zap.String("event_type", event.EventType),
			zap.String("principal_id", event.PrincipalID),
			zap.Error(err),
		)
	}
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
