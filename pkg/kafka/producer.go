package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the producer drives.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes JSON payloads keyed for per-key ordering.
type Producer struct {
	w     MessageWriter
	codec string
}

// NewProducer builds a hash-balanced synchronous writer.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker is required")
	}
	codec, err := compression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  codec,
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		Transport:    &kafka.Transport{ClientID: cfg.ClientID},
	}
	return NewProducerWithWriter(w, cfg.Compression), nil
}

// NewProducerWithWriter wraps an existing writer.
func NewProducerWithWriter(w MessageWriter, codec string) *Producer {
	registerMetrics()
	return &Producer{w: w, codec: codec}
}

// Message is one keyed payload. Non-byte values are JSON encoded.
type Message struct {
	Key     string
	Value   any
	Headers map[string]string
}

// Publish sends a single message to topic.
func (p *Producer) Publish(ctx context.Context, topic, key string, value any) error {
	return p.PublishBatch(ctx, topic, []Message{{Key: key, Value: value}})
}

// PublishBatch sends messages to topic in one write.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	began := time.Now()
	now := began.UTC()
	out := make([]kafka.Message, 0, len(messages))
	var size int
	for _, m := range messages {
		v, err := encode(m.Value)
		if err != nil {
			return fmt.Errorf("kafka: encode %s/%s: %w", topic, m.Key, err)
		}
		km := kafka.Message{Topic: topic, Key: []byte(m.Key), Value: v, Time: now}
		for k, hv := range m.Headers {
			km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(hv)})
		}
		out = append(out, km)
		size += len(v)
	}
	err := p.w.WriteMessages(ctx, out...)
	observe(topic, p.codec, len(out), size, time.Since(began), err)
	if err != nil {
		return fmt.Errorf("kafka: write %d messages to %s: %w", len(out), topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.w == nil {
		return nil
	}
	return p.w.Close()
}

func encode(v any) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	default:
		return json.Marshal(val)
	}
}

func compression(name string) (kafka.Compression, error) {
	switch name {
	case "", "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	}
	return 0, fmt.Errorf("kafka: unknown compression %q", name)
}

var (
	metricsOnce     sync.Once
	producedTotal   *prometheus.CounterVec
	producedBytes   *prometheus.CounterVec
	producerLatency *prometheus.HistogramVec
	consumedTotal   *prometheus.CounterVec
)

func registerMetrics() {
	metricsOnce.Do(func() {
		producedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mhi_kafka_messages_total",
			Help: "Messages written to Kafka by topic and result",
		}, []string{"topic", "result"})
		producedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mhi_kafka_bytes_total",
			Help: "Payload bytes written to Kafka",
		}, []string{"topic", "compression"})
		producerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mhi_kafka_write_seconds",
			Help:    "Kafka write latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
		consumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mhi_kafka_consumed_total",
			Help: "Messages handled by topic and result",
		}, []string{"topic", "result"})
	})
}

func consumed(topic, result string) {
	consumedTotal.WithLabelValues(topic, result).Inc()
}

func observe(topic, codec string, count, size int, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	producedTotal.WithLabelValues(topic, result).Add(float64(count))
	producedBytes.WithLabelValues(topic, codec).Add(float64(size))
	producerLatency.WithLabelValues(topic).Observe(took.Seconds())
}
