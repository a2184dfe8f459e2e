package usecase

import (
	"context"
	"fmt"
	"time"

	"MHIRebal/internal/domain/models"
	domrepo "MHIRebal/internal/domain/repository"
	"MHIRebal/internal/services/policy"
	"MHIRebal/internal/services/simulation"
	applogger "MHIRebal/pkg/logger"

	"github.com/google/uuid"
)

// BacktestParams selects one run over the loaded history.
type BacktestParams struct {
	Low, High   float64
	SkipMissing bool
	CostPreset  string // empty uses the configured rates
	Analysis    bool   // compute per-event impacts
	Publish     bool   // forward events to the publisher
}

// Backtester runs the weekly simulation with benchmarks and event analysis.
type Backtester struct {
	data     *DatasetLoader
	settings Settings
	pub      domrepo.EventPublisher
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

func NewBacktester(data *DatasetLoader, settings Settings, pub domrepo.EventPublisher, metrics domrepo.Metrics, l *applogger.Logger) (*Backtester, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Backtester{data: data, settings: settings, pub: pub, metrics: metrics, l: l.Component("backtest")}, nil
}

func (b *Backtester) Settings() Settings { return b.settings }

// Load exposes the dataset so a sweep can reuse one load for many runs.
func (b *Backtester) Load(ctx context.Context) (*Dataset, error) {
	return b.data.Load(ctx)
}

// Run loads the data and produces a full report for one threshold pair.
func (b *Backtester) Run(ctx context.Context, p BacktestParams) (*models.SimulationReport, error) {
	ds, err := b.data.Load(ctx)
	if err != nil {
		return nil, err
	}
	return b.Report(ctx, ds, p)
}

// Report simulates p over ds and attaches metrics, benchmarks and impacts.
func (b *Backtester) Report(ctx context.Context, ds *Dataset, p BacktestParams) (*models.SimulationReport, error) {
	began := time.Now()
	res, err := b.Simulate(ctx, ds, p)
	if err != nil {
		return nil, err
	}
	rep := &models.SimulationReport{
		LowThreshold:  p.Low,
		HighThreshold: p.High,
		Result:        res,
		Metrics:       simulation.ComputeMetrics(res.Returns),
	}
	rep.Benchmarks, err = simulation.Benchmarks(ds.Frame, simulation.StandardBenchmarks(b.settings.Policy.Base), p.SkipMissing)
	if err != nil {
		return nil, err
	}
	if p.Analysis {
		rep.Impacts = simulation.Impacts(ds.Frame, res.Events, b.settings.ImpactWindow)
	}

	for _, ev := range res.Events {
		if b.metrics != nil {
			b.metrics.RecordRebalance(string(ev.Bucket), ev.Cost)
		}
	}
	if p.Publish && b.pub != nil && len(res.Events) > 0 {
		runID := uuid.NewString()
		for _, ev := range res.Events {
			if err := b.pub.PublishRebalance(ctx, runID, ev); err != nil {
				b.l.Warn("publish rebalance failed", applogger.String("event", ev.ID), applogger.Error(err))
				break
			}
		}
	}
	if b.metrics != nil {
		b.metrics.RecordLatency("backtest", time.Since(began).Seconds())
	}
	b.l.Info("backtest finished",
		applogger.Float("low", p.Low),
		applogger.Float("high", p.High),
		applogger.Int("rebalances", res.Rebalances),
		applogger.Float("total_return", rep.Metrics.TotalReturn),
		applogger.Float("sharpe", rep.Metrics.Sharpe),
		applogger.Duration("took", time.Since(began)),
	)
	return rep, nil
}

// Simulate runs the engine only, without benchmarks or analysis.
func (b *Backtester) Simulate(ctx context.Context, ds *Dataset, p BacktestParams) (*models.SimulationResult, error) {
	cfg := b.settings.Policy.WithThresholds(p.Low, p.High)
	chain, err := b.settings.chain(cfg, ds.RealYield)
	if err != nil {
		return nil, err
	}
	rates, err := b.settings.CostRatesFor(p.CostPreset)
	if err != nil {
		return nil, err
	}
	cost, err := policy.NewCostModel(rates)
	if err != nil {
		return nil, err
	}
	simCfg := b.settings.Simulation
	simCfg.SkipMissing = simCfg.SkipMissing || p.SkipMissing
	eng, err := simulation.NewEngine(simCfg, chain, cost, b.l)
	if err != nil {
		return nil, err
	}
	res, err := eng.Run(ctx, ds.Frame, ds.Signal)
	if err != nil {
		return nil, fmt.Errorf("simulate low=%g high=%g: %w", p.Low, p.High, err)
	}
	return res, nil
}
