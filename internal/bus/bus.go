package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	kgo "github.com/segmentio/kafka-go"

	"github.com/joshua-vybe/feedbridge/internal/metrics"
)

// PublishResult reports the outcome of one publish attempt.
type PublishResult struct {
	Success   bool
	LatencyMs float64
}

// Publisher is the event bus surface the connectors and the status
// tracker depend on. Publishing is fire-and-forget: failures are
// reported in the result, never as an error the caller must handle.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) PublishResult
}

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers []string
	Timeout time.Duration // per-publish timeout
}

// KafkaPublisher writes messages to Kafka, one writer shared across
// topics with the topic set per message.
type KafkaPublisher struct {
	writer  *kgo.Writer
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewKafkaPublisher creates a publisher for the given brokers.
func NewKafkaPublisher(cfg KafkaConfig, m *metrics.Metrics, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 3 * time.Second
	}

	w := &kgo.Writer{
		Addr:                   kgo.TCP(cfg.Brokers...),
		Balancer:               &kgo.LeastBytes{},
		RequiredAcks:           kgo.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &KafkaPublisher{
		writer:  w,
		timeout: timeout,
		logger:  logger,
		metrics: m,
	}
}

// Publish serializes payload as JSON and writes it to the topic. The
// key preserves per-market (or per-event) ordering within a topic.
func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload any) PublishResult {
	start := time.Now()

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("failed to marshal bus payload", "topic", topic, "error", err)
		p.metrics.ObservePublish(topic, false)
		return PublishResult{Success: false}
	}

	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(cctx, kgo.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  start,
	})

	latency := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		p.logger.Warn("publish failed", "topic", topic, "key", key, "error", err)
		p.metrics.ObservePublish(topic, false)
		return PublishResult{Success: false, LatencyMs: latency}
	}

	p.metrics.ObservePublish(topic, true)
	return PublishResult{Success: true, LatencyMs: latency}
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
