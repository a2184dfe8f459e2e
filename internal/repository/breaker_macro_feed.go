package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MHIRebal/internal/domain/models"
	domrepo "MHIRebal/internal/domain/repository"
	applogger "MHIRebal/pkg/logger"

	"github.com/sony/gobreaker"
)

// BreakerConfig tunes the macro feed circuit breaker.
type BreakerConfig struct {
	Failures uint32        // consecutive failures that open the circuit
	Timeout  time.Duration // open -> half-open delay
}

// BreakerMacroFeed stops hammering a failing macro source. An open circuit is
// reported as ErrFeedUnavailable so callers degrade the same way as on a
// direct failure.
type BreakerMacroFeed struct {
	inner domrepo.MacroFeed
	cb    *gobreaker.CircuitBreaker
}

func NewBreakerMacroFeed(inner domrepo.MacroFeed, cfg BreakerConfig, l *applogger.Logger) *BreakerMacroFeed {
	if l == nil {
		l = applogger.Nop()
	}
	if cfg.Failures == 0 {
		cfg.Failures = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	st := gobreaker.Settings{
		Name:        "macro:" + inner.Name(),
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= cfg.Failures },
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("macro feed breaker state change",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	}
	return &BreakerMacroFeed{inner: inner, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *BreakerMacroFeed) Name() string { return b.inner.Name() }

func (b *BreakerMacroFeed) State() gobreaker.State { return b.cb.State() }

func (b *BreakerMacroFeed) LoadMacro(ctx context.Context, start time.Time) (models.MacroSeries, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.LoadMacro(ctx, start)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return models.MacroSeries{}, fmt.Errorf("%w: %v", models.ErrFeedUnavailable, err)
		}
		return models.MacroSeries{}, err
	}
	return out.(models.MacroSeries), nil
}
