package repository

import (
	"context"
	"time"

	"MHIRebal/internal/domain/models"
	pkgkafka "MHIRebal/pkg/kafka"
	applogger "MHIRebal/pkg/logger"
)

// Topics names the Kafka topics the publisher writes to.
type Topics struct {
	Rebalances string
	Decisions  string
	Sweeps     string
}

type rebalanceMessage struct {
	RunID string `json:"run_id"`
	models.RebalanceEvent
}

type sweepSummary struct {
	ID        string            `json:"id"`
	Total     int               `json:"total"`
	Completed int               `json:"completed"`
	Best      *models.SweepCell `json:"best,omitempty"`
	Published time.Time         `json:"published_at"`
}

// KafkaEventPublisher forwards domain events as JSON. Rebalance events are
// keyed by run so a consumer sees one run in order.
type KafkaEventPublisher struct {
	p      *pkgkafka.Producer
	topics Topics
	l      *applogger.Logger
}

func NewKafkaEventPublisher(p *pkgkafka.Producer, topics Topics, l *applogger.Logger) *KafkaEventPublisher {
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaEventPublisher{p: p, topics: topics, l: l.Component("kafka_publisher")}
}

func (k *KafkaEventPublisher) PublishRebalance(ctx context.Context, runID string, ev models.RebalanceEvent) error {
	msg := pkgkafka.Message{
		Key:     runID,
		Value:   rebalanceMessage{RunID: runID, RebalanceEvent: ev},
		Headers: map[string]string{"bucket": string(ev.Bucket), "event_id": ev.ID},
	}
	return k.p.PublishBatch(ctx, k.topics.Rebalances, []pkgkafka.Message{msg})
}

func (k *KafkaEventPublisher) PublishDecision(ctx context.Context, d *models.Decision) error {
	return k.p.Publish(ctx, k.topics.Decisions, d.Date.Format(time.DateOnly), d)
}

// PublishSweep sends a compact summary; the full leaderboard stays with the caller.
func (k *KafkaEventPublisher) PublishSweep(ctx context.Context, r *models.SweepReport) error {
	s := sweepSummary{ID: r.ID, Total: r.Total, Completed: r.Completed, Published: time.Now().UTC()}
	if len(r.BySharpe) > 0 {
		best := r.BySharpe[0]
		s.Best = &best
	}
	return k.p.Publish(ctx, k.topics.Sweeps, r.ID, s)
}

func (k *KafkaEventPublisher) Close() error {
	k.l.Debug("closing kafka publisher")
	return k.p.Close()
}

// NopPublisher drops every event. It stands in when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishRebalance(context.Context, string, models.RebalanceEvent) error {
	return nil
}
func (NopPublisher) PublishDecision(context.Context, *models.Decision) error { return nil }
func (NopPublisher) PublishSweep(context.Context, *models.SweepReport) error { return nil }
func (NopPublisher) Close() error                                            { return nil }
