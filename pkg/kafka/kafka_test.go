package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

// fakeReader serves queued messages, then blocks until the context ends.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	drained   chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{queue: msgs, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	if len(r.queue) == 0 {
		select {
		case <-r.drained:
		default:
			close(r.drained)
		}
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestProducerPublishBatch(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "none")

	err := p.PublishBatch(context.Background(), "mhi.rebalances", []Message{
		{Key: "run-1", Value: map[string]int{"period": 4}, Headers: map[string]string{"bucket": "LOW"}},
		{Key: "run-1", Value: "raw"},
	})
	require.NoError(t, err)

	got := w.written()
	require.Len(t, got, 2)
	assert.Equal(t, "mhi.rebalances", got[0].Topic)
	assert.Equal(t, []byte("run-1"), got[0].Key)
	assert.JSONEq(t, `{"period":4}`, string(got[0].Value))
	assert.Equal(t, []kafka.Header{{Key: "bucket", Value: []byte("LOW")}}, got[0].Headers)
	assert.Equal(t, "raw", string(got[1].Value))

	assert.NoError(t, p.PublishBatch(context.Background(), "t", nil))
}

func TestProducerWrapsWriteError(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{err: errors.New("broker down")}, "none")
	err := p.Publish(context.Background(), "mhi.decisions", "2024-01-05", struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mhi.decisions")
}

func TestCompression(t *testing.T) {
	for _, name := range []string{"", "none", "gzip", "snappy", "lz4", "zstd"} {
		_, err := compression(name)
		assert.NoError(t, err, name)
	}
	_, err := compression("brotli")
	assert.Error(t, err)
}

func TestConsumerHandlesInOrderAndCommits(t *testing.T) {
	r := newFakeReader(
		kafka.Message{Topic: "mhi.decisions", Offset: 1, Key: []byte("a"), Value: []byte("1")},
		kafka.Message{Topic: "mhi.decisions", Offset: 2, Key: []byte("b"), Value: []byte("2"),
			Headers: []kafka.Header{{Key: "bucket", Value: []byte("HIGH")}}},
	)
	c := NewConsumerWithReaders(map[string]MessageReader{"mhi.decisions": r})

	var seen []Received
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(_ context.Context, m Received) error {
			seen = append(seen, m)
			return nil
		})
	}()

	select {
	case <-r.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("messages not committed")
	}
	cancel()
	require.NoError(t, <-done)

	require.Len(t, seen, 2)
	assert.Equal(t, "a", seen[0].Key)
	assert.Equal(t, "HIGH", seen[1].Headers["bucket"])
	assert.Equal(t, []int64{1, 2}, r.committed)
}

func TestConsumerRetriesThenDeadLetters(t *testing.T) {
	r := newFakeReader(kafka.Message{Topic: "mhi.rebalances", Offset: 7, Key: []byte("run-9"), Value: []byte(`{}`)})
	dlq := &fakeWriter{}
	c := NewConsumerWithReaders(map[string]MessageReader{"mhi.rebalances": r},
		WithRetry(2, time.Millisecond, time.Millisecond),
		WithDeadLetter("mhi.dlq", NewProducerWithWriter(dlq, "none")),
	)
	c.sleep = func(context.Context, time.Duration) error { return nil }

	calls := 0
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(context.Context, Received) error {
			calls++
			if calls == 2 {
				panic("bad payload")
			}
			return errors.New("decode failed")
		})
	}()

	select {
	case <-r.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("message not committed")
	}
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 3, calls)
	got := dlq.written()
	require.Len(t, got, 1)
	assert.Equal(t, "mhi.dlq", got[0].Topic)
	assert.Equal(t, []byte("run-9"), got[0].Key)
	assert.Equal(t, []int64{7}, r.committed)
}

func TestNewConsumerRequiresBrokersAndTopics(t *testing.T) {
	_, err := NewConsumer([]string{"t"})
	assert.Error(t, err)
	_, err = NewConsumer(nil, WithConsumerBrokers("k:9092"))
	assert.Error(t, err)
}
