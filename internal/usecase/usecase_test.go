package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"MHIRebal/internal/domain/models"
	"MHIRebal/internal/services/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdvisor(t *testing.T, pub *fakePublisher) *Advisor {
	t.Helper()
	a, err := NewAdvisor(nil, DefaultSettings(), pub, nil, nil)
	require.NoError(t, err)
	return a
}

func TestDatasetLoaderAlignsFrameToSignal(t *testing.T) {
	prices := &fakePrices{frame: syntheticFrame(120)}
	cache := newFakeCache()
	loader := NewDatasetLoader(prices, nil, cache, smallIndicators(), d0, nil, nil)

	ds, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Greater(t, ds.Signal.Len(), 0)
	assert.Equal(t, ds.Signal.Dates, ds.Frame.Dates)
	assert.False(t, ds.UsesCredit)
	assert.Nil(t, ds.RealYield)
	assert.Equal(t, 1, cache.puts)

	again, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, ds.Signal, again.Signal)
}

func TestDatasetLoaderCorrectedValuesMissCache(t *testing.T) {
	prices := &fakePrices{frame: syntheticFrame(120)}
	cache := newFakeCache()
	loader := NewDatasetLoader(prices, nil, cache, smallIndicators(), d0, nil, nil)

	first, err := loader.Load(context.Background())
	require.NoError(t, err)

	corrected := syntheticFrame(120)
	corrected.Volatility[110] *= 1.5
	prices.frame = corrected
	second, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.Zero(t, cache.hits, "same dates, different values")
	assert.Equal(t, 2, cache.puts)
	assert.NotEqual(t, first.Signal.Values, second.Signal.Values)
}

func TestDatasetLoaderMacroFailureDegrades(t *testing.T) {
	prices := &fakePrices{frame: syntheticFrame(120)}
	macro := &fakeMacro{err: errors.New("fred down")}
	loader := NewDatasetLoader(prices, macro, nil, smallIndicators(), d0, nil, nil)

	ds, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ds.MacroOK)
	assert.False(t, ds.UsesCredit)
	assert.Nil(t, ds.RealYield)
}

func TestDatasetLoaderUsesCreditWhenPresent(t *testing.T) {
	f := syntheticFrame(120)
	credit := make([]float64, f.Len())
	ry := make([]float64, f.Len())
	for i := range credit {
		credit[i] = 3 + 0.5*f.Volatility[i]/20 + 0.001*float64(i%7)
		ry[i] = 1 + 0.01*float64(i)
	}
	macro := &fakeMacro{macro: models.MacroSeries{
		CreditSpread: &models.Series{Name: "credit", Dates: f.Dates, Values: credit},
		RealYield:    &models.Series{Name: "real_yield", Dates: f.Dates, Values: ry},
	}}
	loader := NewDatasetLoader(&fakePrices{frame: f}, macro, nil, smallIndicators(), d0, nil, nil)

	ds, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, ds.MacroOK)
	assert.True(t, ds.UsesCredit)
	require.NotNil(t, ds.RealYield)
	assert.Equal(t, f.Len(), ds.RealYield.Len())
}

func TestDatasetLoaderPriceFailure(t *testing.T) {
	prices := &fakePrices{err: models.ErrFeedUnavailable}
	loader := NewDatasetLoader(prices, nil, nil, smallIndicators(), d0, nil, nil)
	_, err := loader.Load(context.Background())
	assert.ErrorIs(t, err, models.ErrFeedUnavailable)
}

func TestAdviseDecisions(t *testing.T) {
	base := policy.DefaultConfig().Base
	tests := []struct {
		name      string
		signal    []float64
		status    models.DecisionStatus
		bucket    models.Bucket
		recent    []models.Bucket
		wantDelta models.WeightVector
	}{
		{
			name:      "confirmed low",
			signal:    []float64{0, -2, -2, -2},
			status:    models.StatusConfirmed,
			bucket:    models.BucketLow,
			recent:    []models.Bucket{models.BucketLow, models.BucketLow, models.BucketLow},
			wantDelta: models.WeightVector{RiskA: 0.20, RiskB: -0.20},
		},
		{
			name:      "interrupted low",
			signal:    []float64{-2, 0, -2},
			status:    models.StatusNotConfirmed,
			bucket:    models.BucketLow,
			recent:    []models.Bucket{models.BucketLow, models.BucketNeutral, models.BucketLow},
			wantDelta: models.WeightVector{RiskA: 0.20, RiskB: -0.20},
		},
		{
			name:   "confirmed neutral",
			signal: []float64{0.1, 0.2, 0.3},
			status: models.StatusConfirmed,
			bucket: models.BucketNeutral,
			recent: []models.Bucket{models.BucketNeutral, models.BucketNeutral, models.BucketNeutral},
		},
		{
			name:      "confirmed high",
			signal:    []float64{2, 2, 2},
			status:    models.StatusConfirmed,
			bucket:    models.BucketHigh,
			recent:    []models.Bucket{models.BucketHigh, models.BucketHigh, models.BucketHigh},
			wantDelta: models.WeightVector{RiskA: -0.20, RiskB: 0.15, Cash: 0.10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAdvisor(t, nil)
			d, err := a.decide(handDataset(tt.signal...), base)
			require.NoError(t, err)
			assert.Equal(t, tt.status, d.Status)
			assert.Equal(t, tt.bucket, d.Bucket)
			assert.Equal(t, tt.recent, d.Recent)
			assert.InDelta(t, tt.wantDelta.RiskA, d.Delta.RiskA, 1e-12)
			assert.InDelta(t, tt.wantDelta.RiskB, d.Delta.RiskB, 1e-12)
			assert.InDelta(t, tt.wantDelta.RiskC, d.Delta.RiskC, 1e-12)
			assert.InDelta(t, tt.wantDelta.Cash, d.Delta.Cash, 1e-12)
			assert.Equal(t, tt.status == models.StatusConfirmed, d.Confirmed)
			assert.Equal(t, tt.status == models.StatusConfirmed && tt.bucket.IsExtreme(), d.Actionable())
		})
	}
}

func TestAdviseInsufficientHistory(t *testing.T) {
	a := newAdvisor(t, nil)
	d, err := a.decide(handDataset(-2, -2), policy.DefaultConfig().Base)
	require.ErrorIs(t, err, models.ErrInsufficientHistory)
	require.NotNil(t, d)
	assert.Equal(t, models.StatusInsufficientHistory, d.Status)
}

func TestAdvisePublishesDecision(t *testing.T) {
	pub := newFakePublisher()
	loader := NewDatasetLoader(&fakePrices{frame: syntheticFrame(120)}, nil, nil, smallIndicators(), d0, nil, nil)
	a, err := NewAdvisor(loader, DefaultSettings(), pub, nil, nil)
	require.NoError(t, err)

	d, err := a.Advise(context.Background(), policy.DefaultConfig().Base)
	require.NoError(t, err)
	require.Len(t, pub.decisions, 1)
	assert.Same(t, d, pub.decisions[0])
	assert.Len(t, d.Recent, 3)
}

func TestAdviseRejectsBadHoldings(t *testing.T) {
	a := newAdvisor(t, nil)
	_, err := a.Advise(context.Background(), models.WeightVector{RiskA: 0.7, RiskB: 0.7})
	assert.ErrorIs(t, err, models.ErrInvalidWeights)
}

func TestDeltaSuppressesSmallMoves(t *testing.T) {
	cur := models.WeightVector{RiskA: 0.50, RiskB: 0.30, RiskC: 0.05, Cash: 0.15}
	target := models.WeightVector{RiskA: 0.55, RiskB: 0.25, RiskC: 0.05, Cash: 0.15}
	assert.Equal(t, models.WeightVector{}, Delta(cur, target, models.BucketLow, DefaultMinChange))
	assert.Equal(t, models.WeightVector{}, Delta(models.WeightVector{Cash: 1}, target, models.BucketNeutral, DefaultMinChange))

	d := Delta(models.WeightVector{RiskB: 1}, target, models.BucketLow, DefaultMinChange)
	assert.InDelta(t, 0.55, d.RiskA, 1e-12)
	assert.InDelta(t, -0.75, d.RiskB, 1e-12)
	assert.Zero(t, d.RiskC)
	assert.InDelta(t, 0.15, d.Cash, 1e-12)
}

func lowThenNeutral(n int) []float64 {
	vals := repeat(-2, n)
	for i := n / 2; i < n; i++ {
		vals[i] = 0
	}
	return vals
}

func TestBacktestReport(t *testing.T) {
	pub := newFakePublisher()
	bt, err := NewBacktester(nil, DefaultSettings(), pub, nil, nil)
	require.NoError(t, err)

	ds := handDataset(lowThenNeutral(80)...)
	rep, err := bt.Report(context.Background(), ds, BacktestParams{Low: -1.75, High: 1.75, Analysis: true, Publish: true})
	require.NoError(t, err)
	require.Greater(t, rep.Result.Rebalances, 0)
	assert.Len(t, rep.Impacts, len(rep.Result.Events))
	assert.Len(t, rep.Benchmarks, 5)
	assert.Equal(t, len(rep.Result.Returns), rep.Metrics.Periods)

	require.Len(t, pub.runs, 1)
	for _, count := range pub.runs {
		assert.Equal(t, len(rep.Result.Events), count)
	}
}

func TestBacktestRejectsUnknownPreset(t *testing.T) {
	bt, err := NewBacktester(nil, DefaultSettings(), nil, nil, nil)
	require.NoError(t, err)
	_, err = bt.Simulate(context.Background(), handDataset(repeat(0, 20)...), BacktestParams{Low: -1, High: 1, CostPreset: "free-lunch"})
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
}

func TestBacktestZeroPresetIsFree(t *testing.T) {
	bt, err := NewBacktester(nil, DefaultSettings(), nil, nil, nil)
	require.NoError(t, err)
	res, err := bt.Simulate(context.Background(), handDataset(lowThenNeutral(80)...),
		BacktestParams{Low: -1.75, High: 1.75, CostPreset: policy.PresetZero})
	require.NoError(t, err)
	require.Greater(t, res.Rebalances, 0)
	assert.Zero(t, res.TotalCost)
}

func sweepGrid() []models.ThresholdPair {
	var pairs []models.ThresholdPair
	for _, lo := range []float64{-2.5, -1.75, -1.0, -0.5} {
		for _, hi := range []float64{0.5, 1.0, 1.75, 2.5} {
			pairs = append(pairs, models.ThresholdPair{Low: lo, High: hi})
		}
	}
	return pairs
}

func newSweeper(t *testing.T, pub *fakePublisher) *Sweeper {
	t.Helper()
	bt, err := NewBacktester(nil, DefaultSettings(), nil, nil, nil)
	require.NoError(t, err)
	if pub == nil {
		return NewSweeper(bt, nil, nil, nil)
	}
	return NewSweeper(bt, pub, nil, nil)
}

func TestSweepRanksAllCells(t *testing.T) {
	pub := newFakePublisher()
	s := newSweeper(t, pub)
	vals := make([]float64, 120)
	for i := range vals {
		vals[i] = 2.2 * sinAt(i)
	}
	grid := sweepGrid()

	progress := make(chan models.SweepCell, len(grid))
	rep, err := s.RunOn(context.Background(), handDataset(vals...), SweepParams{Pairs: grid, Workers: 3, Top: 5}, progress)
	require.NoError(t, err)
	close(progress)

	assert.Equal(t, len(grid), rep.Total)
	assert.Equal(t, len(grid), rep.Completed)
	assert.False(t, rep.Cancelled)
	assert.Len(t, progress, len(grid))
	require.Len(t, rep.BySharpe, 5)
	for i := 1; i < len(rep.BySharpe); i++ {
		assert.GreaterOrEqual(t, rep.BySharpe[i-1].Metrics.Sharpe, rep.BySharpe[i].Metrics.Sharpe)
		assert.GreaterOrEqual(t, rep.ByReturn[i-1].Metrics.TotalReturn, rep.ByReturn[i].Metrics.TotalReturn)
	}

	count := 0
	for i, g := range rep.Groups {
		count += g.Count
		if i > 0 {
			assert.Less(t, rep.Groups[i-1].Rebalances, g.Rebalances)
		}
		for _, c := range g.Cells {
			assert.Equal(t, g.Rebalances, c.Rebalances)
			assert.LessOrEqual(t, c.Metrics.Sharpe, g.Best.Metrics.Sharpe)
		}
	}
	assert.Equal(t, len(grid), count)
	assert.Len(t, pub.sweeps, 1)
}

func TestSweepMatchesSingleRuns(t *testing.T) {
	s := newSweeper(t, nil)
	ds := handDataset(lowThenNeutral(80)...)
	grid := []models.ThresholdPair{{Low: -1.75, High: 1.75}, {Low: -3, High: 3}}

	rep, err := s.RunOn(context.Background(), ds, SweepParams{Pairs: grid, Workers: 2}, nil)
	require.NoError(t, err)
	for _, c := range rep.BySharpe {
		res, err := s.bt.Simulate(context.Background(), ds, BacktestParams{Low: c.Pair.Low, High: c.Pair.High})
		require.NoError(t, err)
		assert.Equal(t, res.Rebalances, c.Rebalances)
		assert.InDelta(t, res.TotalCost, c.TotalCost, 1e-15)
	}
}

func TestSweepCancelled(t *testing.T) {
	pub := newFakePublisher()
	s := newSweeper(t, pub)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := s.RunOn(ctx, handDataset(repeat(0, 60)...), SweepParams{Pairs: sweepGrid(), Workers: 4}, nil)
	require.NoError(t, err)
	assert.True(t, rep.Cancelled)
	assert.Zero(t, rep.Completed)
	assert.Empty(t, pub.sweeps)
}

// cancelAfter reports cancellation once Err has been asked more than n times.
type cancelAfter struct {
	context.Context
	n     int64
	calls atomic.Int64
}

func (c *cancelAfter) Err() error {
	if c.calls.Add(1) > c.n {
		return context.Canceled
	}
	return nil
}

func TestSweepFinishesStartedCell(t *testing.T) {
	pub := newFakePublisher()
	s := newSweeper(t, pub)
	ctx := &cancelAfter{Context: context.Background(), n: 1}
	grid := []models.ThresholdPair{{Low: -1.75, High: 1.75}, {Low: -2, High: 2}, {Low: -1.5, High: 1.5}}

	rep, err := s.RunOn(ctx, handDataset(lowThenNeutral(60)...), SweepParams{Pairs: grid, Workers: 1}, nil)
	require.NoError(t, err)
	assert.True(t, rep.Cancelled)
	assert.Equal(t, 1, rep.Completed, "the cell started before cancellation is kept")
	require.Len(t, rep.BySharpe, 1)
	assert.Equal(t, grid[0], rep.BySharpe[0].Pair)
	assert.Empty(t, rep.BySharpe[0].Error)
	assert.Empty(t, pub.sweeps)
}

func TestSweepRejectsInvertedPair(t *testing.T) {
	s := newSweeper(t, nil)
	_, err := s.Run(context.Background(), SweepParams{Pairs: []models.ThresholdPair{{Low: 1, High: -1}}}, nil)
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
}

func TestRankKeepsFailedCellsOut(t *testing.T) {
	cells := []models.SweepCell{
		{Index: 0, Rebalances: 2, Metrics: models.PerformanceMetrics{Sharpe: 0.5, TotalReturn: 0.1}},
		{Index: 1, Error: "boom"},
		{Index: 2, Rebalances: 2, Metrics: models.PerformanceMetrics{Sharpe: 0.9, TotalReturn: 0.05}},
		{Index: 3, Rebalances: 0, Metrics: models.PerformanceMetrics{Sharpe: 0.1, TotalReturn: 0.2}},
	}
	rep := &models.SweepReport{}
	Rank(rep, cells, 0)

	require.Len(t, rep.BySharpe, 3)
	assert.Equal(t, []int{2, 0, 3}, indexes(rep.BySharpe))
	assert.Equal(t, []int{3, 0, 2}, indexes(rep.ByReturn))
	require.Len(t, rep.Groups, 2)
	assert.Equal(t, 0, rep.Groups[0].Rebalances)
	assert.Equal(t, 2, rep.Groups[1].Count)
	assert.Equal(t, 2, rep.Groups[1].Best.Index)
}

func indexes(cells []models.SweepCell) []int {
	out := make([]int, len(cells))
	for i, c := range cells {
		out[i] = c.Index
	}
	return out
}
