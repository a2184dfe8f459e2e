package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the subset of *kafka.Reader the consumer drives.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Received is one message handed to a Handler.
type Received struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
	Value     []byte
	Headers   map[string]string
	Time      time.Time
}

// Handler processes one message. A returned error is retried with backoff and
// then, when a dead-letter producer is set, forwarded there.
type Handler func(ctx context.Context, m Received) error

type ConsumerOption func(*ConsumerConfig)

type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	FromStart   bool
	RetryMax    int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	MinBytes    int
	MaxBytes    int
	DLQTopic    string
	DLQProducer *Producer
}

func defaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		GroupID:    "mhi-watch",
		RetryMax:   3,
		BackoffMin: 100 * time.Millisecond,
		BackoffMax: 2 * time.Second,
		MinBytes:   1,
		MaxBytes:   1 << 20,
	}
}

func WithConsumerBrokers(brokers ...string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}

func WithGroupID(id string) ConsumerOption {
	return func(c *ConsumerConfig) { c.GroupID = id }
}

// WithFromStart makes a new group begin at the earliest offset instead of the latest.
func WithFromStart(v bool) ConsumerOption {
	return func(c *ConsumerConfig) { c.FromStart = v }
}

func WithRetry(max int, min, maxBackoff time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = min
		c.BackoffMax = maxBackoff
	}
}

func WithDeadLetter(topic string, p *Producer) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.DLQTopic = topic
		c.DLQProducer = p
	}
}

// Consumer reads each topic with its own group reader and commits after the
// handler returns. Messages of one topic are handled in order.
type Consumer struct {
	cfg     ConsumerConfig
	readers map[string]MessageReader
	sleep   func(context.Context, time.Duration) error
}

func NewConsumer(topics []string, opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker is required")
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("kafka: at least one topic is required")
	}
	start := kafka.LastOffset
	if cfg.FromStart {
		start = kafka.FirstOffset
	}
	readers := make(map[string]MessageReader, len(topics))
	for _, t := range topics {
		readers[t] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			Topic:       t,
			StartOffset: start,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
		})
	}
	return newConsumer(cfg, readers), nil
}

// NewConsumerWithReaders wraps existing readers keyed by topic.
func NewConsumerWithReaders(readers map[string]MessageReader, opts ...ConsumerOption) *Consumer {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newConsumer(cfg, readers)
}

func newConsumer(cfg ConsumerConfig, readers map[string]MessageReader) *Consumer {
	registerMetrics()
	return &Consumer{cfg: cfg, readers: readers, sleep: sleepCtx}
}

// Run blocks until ctx is cancelled or a reader fails. It returns nil on
// cancellation.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		once sync.Once
		fail error
	)
	for topic, r := range c.readers {
		wg.Add(1)
		go func(topic string, r MessageReader) {
			defer wg.Done()
			if err := c.consume(ctx, r, h); err != nil {
				once.Do(func() {
					fail = fmt.Errorf("kafka: consume %s: %w", topic, err)
					cancel()
				})
			}
		}(topic, r)
	}
	wg.Wait()
	return fail
}

func (c *Consumer) consume(ctx context.Context, r MessageReader, h Handler) error {
	for {
		km, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		msg := received(km)
		if err := c.handle(ctx, msg, h); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.deadLetter(ctx, msg, err)
		}
		if err := r.CommitMessages(ctx, km); err != nil && ctx.Err() == nil {
			return fmt.Errorf("commit offset %d: %w", km.Offset, err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, m Received, h Handler) error {
	backoff := c.cfg.BackoffMin
	var err error
	for attempt := 0; attempt <= c.cfg.RetryMax; attempt++ {
		if err = safeHandle(ctx, m, h); err == nil {
			consumed(m.Topic, "ok")
			return nil
		}
		if attempt == c.cfg.RetryMax {
			break
		}
		if serr := c.sleep(ctx, backoff); serr != nil {
			return serr
		}
		backoff *= 2
		if backoff > c.cfg.BackoffMax {
			backoff = c.cfg.BackoffMax
		}
	}
	consumed(m.Topic, "error")
	return err
}

func (c *Consumer) deadLetter(ctx context.Context, m Received, cause error) {
	if c.cfg.DLQProducer == nil || c.cfg.DLQTopic == "" {
		return
	}
	headers := map[string]string{"source_topic": m.Topic, "error": cause.Error()}
	_ = c.cfg.DLQProducer.PublishBatch(ctx, c.cfg.DLQTopic, []Message{{Key: m.Key, Value: m.Value, Headers: headers}})
}

// Close closes every reader and returns the first error.
func (c *Consumer) Close() error {
	var first error
	for _, r := range c.readers {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func safeHandle(ctx context.Context, m Received, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, m)
}

func received(km kafka.Message) Received {
	m := Received{
		Topic:     km.Topic,
		Partition: km.Partition,
		Offset:    km.Offset,
		Key:       string(km.Key),
		Value:     km.Value,
		Time:      km.Time,
	}
	if len(km.Headers) > 0 {
		m.Headers = make(map[string]string, len(km.Headers))
		for _, h := range km.Headers {
			m.Headers[h.Key] = string(h.Value)
		}
	}
	return m
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
