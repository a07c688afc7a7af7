package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"postapi/internal/config"
	"postapi/internal/logger"
	"postapi/internal/model"
)

const (
	headerEventType = "event-type"
	headerRequestID = "request-id"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes events to a single Kafka topic keyed by post id.
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

// New returns a Kafka-backed Publisher, or Noop when no brokers are configured.
func New(cfg config.KafkaConfig, log *zap.Logger) Publisher {
	if !cfg.Enabled() {
		log.Info("event publishing disabled", zap.String("reason", "no kafka brokers configured"))
		return Noop{}
	}
	return NewKafkaPublisher(cfg, log)
}

func NewKafkaPublisher(cfg config.KafkaConfig, log *zap.Logger) *KafkaPublisher {
	log = log.With(zap.String("component", "events"), zap.String("topic", cfg.Topic))
	return &KafkaPublisher{writer: newWriter(cfg, log), logger: log}
}

// newWriter builds an async writer so a POST never waits on a batch flush.
// Delivery failures surface through the completion callback.
func newWriter(cfg config.KafkaConfig, log *zap.Logger) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafkago.RequireAll,
		Compression:            CompressionFromString(cfg.Compression),
		MaxAttempts:            cfg.MaxAttempts,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             deliveryReporter(log),
	}
}

func deliveryReporter(log *zap.Logger) func([]kafkago.Message, error) {
	return func(msgs []kafkago.Message, err error) {
		if err == nil {
			return
		}
		for _, m := range msgs {
			log.Warn("post_event_failed",
				zap.String("type", header(m, headerEventType)),
				zap.String("request_id", header(m, headerRequestID)),
				zap.ByteString("post_id", m.Key),
				zap.Error(err),
			)
		}
	}
}

func header(m kafkago.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (p *KafkaPublisher) PostCreated(ctx context.Context, post *model.Post) error {
	payload, err := json.Marshal(newPostCreatedEvent(post))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(strconv.FormatInt(post.ID, 10)),
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafkago.Header{
			{Key: headerEventType, Value: []byte(TypePostCreated)},
		},
	}
	if id := logger.RequestID(ctx); id != "" {
		msg.Headers = append(msg.Headers, kafkago.Header{Key: headerRequestID, Value: []byte(id)})
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", TypePostCreated, err)
	}
	p.logger.Debug("event queued", zap.String("type", TypePostCreated), zap.Int64("post_id", post.ID))
	return nil
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// CompressionFromString maps a codec name to its kafka-go value. Unknown names fall back to snappy.
func CompressionFromString(name string) kafkago.Compression {
	switch strings.ToLower(name) {
	case "gzip":
		return kafkago.Gzip
	case "lz4":
		return kafkago.Lz4
	case "zstd":
		return kafkago.Zstd
	default:
		return kafkago.Snappy
	}
}
