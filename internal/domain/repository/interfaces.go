package repository

import (
	"context"
	"time"

	"MHIRebal/internal/domain/models"
)

// PriceFeed yields the aligned weekly table the signal and simulation run on.
type PriceFeed interface {
	LoadWeekly(ctx context.Context, start time.Time) (*models.PriceFrame, error)
	Name() string
}

// MacroFeed yields optional real-yield and credit-spread series.
// Implementations return models.ErrFeedUnavailable when they cannot serve data.
type MacroFeed interface {
	LoadMacro(ctx context.Context, start time.Time) (models.MacroSeries, error)
	Name() string
}

// EventPublisher forwards rebalance events and decisions to downstream consumers.
type EventPublisher interface {
	PublishRebalance(ctx context.Context, runID string, ev models.RebalanceEvent) error
	PublishDecision(ctx context.Context, d *models.Decision) error
	PublishSweep(ctx context.Context, r *models.SweepReport) error
	Close() error
}

// SignalCache stores computed composite signal series keyed by input fingerprint.
type SignalCache interface {
	GetSignal(ctx context.Context, key string) (*models.Series, bool, error)
	PutSignal(ctx context.Context, key string, s *models.Series) error
}

type Metrics interface {
	RecordRebalance(bucket string, cost float64)
	RecordSignal(value float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordSweepCell(seconds float64)
}
