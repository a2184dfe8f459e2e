package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"MHIRebal/internal/domain/models"
	domrepo "MHIRebal/internal/domain/repository"
	"MHIRebal/internal/services/policy"
	applogger "MHIRebal/pkg/logger"
)

// Advisor answers "what should the portfolio look like now" against the latest signal.
type Advisor struct {
	data     *DatasetLoader
	settings Settings
	pub      domrepo.EventPublisher
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

func NewAdvisor(data *DatasetLoader, settings Settings, pub domrepo.EventPublisher, metrics domrepo.Metrics, l *applogger.Logger) (*Advisor, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Advisor{data: data, settings: settings, pub: pub, metrics: metrics, l: l.Component("advisor")}, nil
}

// Advise classifies the latest composite value, checks confirmation over the
// most recent weekly buckets (current week included) and proposes a target
// for the given holdings. Too short a history yields ErrInsufficientHistory.
func (a *Advisor) Advise(ctx context.Context, current models.WeightVector) (*models.Decision, error) {
	began := time.Now()
	if err := current.Validate(1); err != nil {
		return nil, fmt.Errorf("current holdings: %w", err)
	}
	ds, err := a.data.Load(ctx)
	if err != nil {
		return nil, err
	}
	d, err := a.decide(ds, current)
	if err != nil {
		return d, err
	}

	if a.metrics != nil {
		a.metrics.RecordLatency("advise", time.Since(began).Seconds())
	}
	a.l.Info("decision computed",
		applogger.Date("date", d.Date),
		applogger.Float("signal", d.Signal),
		applogger.String("bucket", string(d.Bucket)),
		applogger.String("status", string(d.Status)),
		applogger.Bool("tilted", d.Tilted),
	)
	if a.pub != nil {
		if err := a.pub.PublishDecision(ctx, d); err != nil {
			a.l.Warn("publish decision failed", applogger.Error(err))
		}
	}
	return d, nil
}

func (a *Advisor) decide(ds *Dataset, current models.WeightVector) (*models.Decision, error) {
	window := a.settings.Simulation.ConfirmWindow
	n := ds.Signal.Len()
	if n < window {
		d := &models.Decision{Status: models.StatusInsufficientHistory, Current: current}
		return d, fmt.Errorf("%w: %d signal observations, need %d", models.ErrInsufficientHistory, n, window)
	}

	chain, err := a.settings.chain(a.settings.Policy, ds.RealYield)
	if err != nil {
		return nil, err
	}
	date, value, _ := ds.Signal.Last()
	cand, err := chain.Candidate(value, date)
	if err != nil {
		return nil, err
	}

	gate := policy.NewGate(window)
	for _, v := range ds.Signal.Values[n-window:] {
		gate.Push(chain.Weights.Classify(v))
	}
	// A confirmed NEUTRAL run is reported as confirmed; Actionable still
	// requires an extreme bucket.
	confirmed := gate.Confirmed()

	d := &models.Decision{
		Date:      date,
		Signal:    value,
		Bucket:    cand.Bucket,
		Status:    models.StatusNotConfirmed,
		Confirmed: confirmed,
		Recent:    gate.Window(),
		Current:   current,
		Target:    cand.Target,
		Tilted:    cand.Tilted,
	}
	if confirmed {
		d.Status = models.StatusConfirmed
	}
	d.Delta = Delta(current, cand.Target, cand.Bucket, a.settings.MinChange)
	return d, nil
}

// Delta returns target - current per sleeve, zeroing moves smaller than minChange.
// A NEUTRAL bucket never proposes a trade.
func Delta(current, target models.WeightVector, b models.Bucket, minChange float64) models.WeightVector {
	var out models.WeightVector
	if b == models.BucketNeutral {
		return out
	}
	for _, asset := range models.Assets {
		if d := target.Get(asset) - current.Get(asset); math.Abs(d) >= minChange {
			out = out.With(asset, d)
		}
	}
	return out
}
