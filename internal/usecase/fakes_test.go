package usecase

import (
	"context"
	"math"
	"sync"
	"time"

	"MHIRebal/internal/domain/models"
	"MHIRebal/internal/services/indicators"
)

type fakePrices struct {
	frame *models.PriceFrame
	err   error
	calls int
}

func (f *fakePrices) LoadWeekly(context.Context, time.Time) (*models.PriceFrame, error) {
	f.calls++
	return f.frame, f.err
}
func (f *fakePrices) Name() string { return "fake-prices" }

type fakeMacro struct {
	macro models.MacroSeries
	err   error
}

func (f *fakeMacro) LoadMacro(context.Context, time.Time) (models.MacroSeries, error) {
	return f.macro, f.err
}
func (f *fakeMacro) Name() string { return "fake-macro" }

type fakeCache struct {
	mu   sync.Mutex
	m    map[string]models.Series
	gets int
	hits int
	puts int
}

func newFakeCache() *fakeCache { return &fakeCache{m: map[string]models.Series{}} }

func (c *fakeCache) GetSignal(_ context.Context, key string) (*models.Series, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	s, ok := c.m[key]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	return &s, true, nil
}

func (c *fakeCache) PutSignal(_ context.Context, key string, s *models.Series) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.m[key] = *s
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	runs      map[string]int
	decisions []*models.Decision
	sweeps    []*models.SweepReport
}

func newFakePublisher() *fakePublisher { return &fakePublisher{runs: map[string]int{}} }

func (p *fakePublisher) PublishRebalance(_ context.Context, runID string, _ models.RebalanceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs[runID]++
	return nil
}

func (p *fakePublisher) PublishDecision(_ context.Context, d *models.Decision) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decisions = append(p.decisions, d)
	return nil
}

func (p *fakePublisher) PublishSweep(_ context.Context, r *models.SweepReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sweeps = append(p.sweeps, r)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

var d0 = time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC)

// syntheticFrame builds n weekly rows with oscillating sectors so breadth moves.
func syntheticFrame(n int) *models.PriceFrame {
	f := &models.PriceFrame{
		Dates:      make([]time.Time, n),
		RiskA:      make([]float64, n),
		RiskB:      make([]float64, n),
		RiskC:      make([]float64, n),
		Volatility: make([]float64, n),
		Sectors:    map[string][]float64{},
	}
	periods := []float64{5, 7, 9, 11, 13, 17}
	names := []string{"xlb", "xle", "xlf", "xli", "xlk", "xlu"}
	for _, name := range names {
		f.Sectors[name] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		x := float64(i)
		f.Dates[i] = d0.AddDate(0, 0, 7*i)
		f.RiskA[i] = 100 * (1 + 0.004*x + 0.03*math.Sin(x/4))
		f.RiskB[i] = 60 * (1 + 0.002*x)
		f.RiskC[i] = 20 * (1 + 0.006*x + 0.05*math.Cos(x/6))
		f.Volatility[i] = 20 + 6*math.Sin(x/3) + 0.01*x
		for k, name := range names {
			f.Sectors[name][i] = 50 + 5*math.Sin(2*math.Pi*x/periods[k]) + 0.05*x
		}
	}
	return f
}

// handDataset builds a dataset with an explicit signal over a synthetic frame.
func handDataset(values ...float64) *Dataset {
	f := syntheticFrame(len(values))
	return &Dataset{
		Frame:  f,
		Signal: models.Series{Name: "mhi", Dates: f.Dates, Values: values},
	}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func smallIndicators() *indicators.Engine {
	e, err := indicators.NewEngine(indicators.Config{ZWindow: 10, BreadthWindow: 3, UseCredit: true}, nil)
	if err != nil {
		panic(err)
	}
	return e
}

func sinAt(i int) float64 { return math.Sin(float64(i) / 7) }
