package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"MHIRebal/internal/domain/models"
	domrepo "MHIRebal/internal/domain/repository"
	"MHIRebal/internal/services/simulation"
	applogger "MHIRebal/pkg/logger"

	"github.com/google/uuid"
)

// SweepParams describes a threshold grid.
type SweepParams struct {
	Pairs       []models.ThresholdPair
	Workers     int
	CostPreset  string
	SkipMissing bool
	Top         int
}

// Sweeper evaluates a threshold grid over one loaded dataset with a worker pool.
type Sweeper struct {
	bt      *Backtester
	pub     domrepo.EventPublisher
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewSweeper(bt *Backtester, pub domrepo.EventPublisher, metrics domrepo.Metrics, l *applogger.Logger) *Sweeper {
	if l == nil {
		l = applogger.Nop()
	}
	return &Sweeper{bt: bt, pub: pub, metrics: metrics, l: l.Component("sweep")}
}

// Run simulates every pair. Each finished cell is sent to progress when it is
// non-nil; the caller must keep draining it until Run returns. Cancelling ctx
// stops the sweep between cells and returns the partial, ranked report.
func (s *Sweeper) Run(ctx context.Context, p SweepParams, progress chan<- models.SweepCell) (*models.SweepReport, error) {
	if len(p.Pairs) == 0 {
		return nil, fmt.Errorf("%w: empty threshold grid", models.ErrInvalidConfig)
	}
	for _, pair := range p.Pairs {
		if pair.Low >= pair.High {
			return nil, fmt.Errorf("%w: low %g must be below high %g", models.ErrInvalidConfig, pair.Low, pair.High)
		}
	}
	ds, err := s.bt.Load(ctx)
	if err != nil {
		return nil, err
	}
	return s.RunOn(ctx, ds, p, progress)
}

// RunOn is Run against an already loaded dataset.
func (s *Sweeper) RunOn(ctx context.Context, ds *Dataset, p SweepParams, progress chan<- models.SweepCell) (*models.SweepReport, error) {
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(p.Pairs) {
		workers = len(p.Pairs)
	}
	began := time.Now()

	jobs := make(chan int)
	results := make(chan models.SweepCell, workers)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				// cancellation is honoured between cells; a started cell runs to the end
				c, _ := s.cell(context.WithoutCancel(ctx), ds, i, p)
				results <- c
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range p.Pairs {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() { wg.Wait(); close(results) }()

	rep := &models.SweepReport{ID: uuid.NewString(), Total: len(p.Pairs)}
	cells := make([]models.SweepCell, 0, len(p.Pairs))
	for c := range results {
		cells = append(cells, c)
		if progress != nil {
			progress <- c
		}
	}
	rep.Completed = len(cells)
	rep.Cancelled = ctx.Err() != nil
	Rank(rep, cells, p.Top)

	s.l.Info("sweep finished",
		applogger.String("id", rep.ID),
		applogger.Int("cells", rep.Total),
		applogger.Int("completed", rep.Completed),
		applogger.Bool("cancelled", rep.Cancelled),
		applogger.Duration("took", time.Since(began)),
	)
	if s.pub != nil && !rep.Cancelled {
		if err := s.pub.PublishSweep(context.WithoutCancel(ctx), rep); err != nil {
			s.l.Warn("publish sweep failed", applogger.Error(err))
		}
	}
	return rep, nil
}

func (s *Sweeper) cell(ctx context.Context, ds *Dataset, i int, p SweepParams) (models.SweepCell, error) {
	began := time.Now()
	pair := p.Pairs[i]
	c := models.SweepCell{Index: i, Pair: pair}
	res, err := s.bt.Simulate(ctx, ds, BacktestParams{
		Low:         pair.Low,
		High:        pair.High,
		SkipMissing: p.SkipMissing,
		CostPreset:  p.CostPreset,
	})
	if s.metrics != nil {
		s.metrics.RecordSweepCell(time.Since(began).Seconds())
	}
	if err != nil {
		c.Error = err.Error()
		return c, err
	}
	c.Rebalances = res.Rebalances
	c.TotalCost = res.TotalCost
	c.Metrics = simulation.ComputeMetrics(res.Returns)
	return c, nil
}

// Rank fills the report's leaderboards from the finished cells. Failed cells
// are left out of the rankings. Ties keep grid order.
func Rank(rep *models.SweepReport, cells []models.SweepCell, top int) {
	ok := make([]models.SweepCell, 0, len(cells))
	for _, c := range cells {
		if c.Error == "" {
			ok = append(ok, c)
		}
	}
	sort.SliceStable(ok, func(i, j int) bool { return ok[i].Index < ok[j].Index })

	bySharpe := append([]models.SweepCell(nil), ok...)
	sort.SliceStable(bySharpe, func(i, j int) bool { return bySharpe[i].Metrics.Sharpe > bySharpe[j].Metrics.Sharpe })
	byReturn := append([]models.SweepCell(nil), ok...)
	sort.SliceStable(byReturn, func(i, j int) bool { return byReturn[i].Metrics.TotalReturn > byReturn[j].Metrics.TotalReturn })
	if top > 0 {
		bySharpe = bySharpe[:min(top, len(bySharpe))]
		byReturn = byReturn[:min(top, len(byReturn))]
	}
	rep.BySharpe = bySharpe
	rep.ByReturn = byReturn

	groups := map[int]*models.RebalanceGroup{}
	for _, c := range ok {
		g, found := groups[c.Rebalances]
		if !found {
			g = &models.RebalanceGroup{Rebalances: c.Rebalances, Best: c}
			groups[c.Rebalances] = g
		}
		g.Cells = append(g.Cells, c)
		g.Count++
		if c.Metrics.Sharpe > g.Best.Metrics.Sharpe {
			g.Best = c
		}
	}
	rep.Groups = make([]models.RebalanceGroup, 0, len(groups))
	for _, g := range groups {
		rep.Groups = append(rep.Groups, *g)
	}
	sort.Slice(rep.Groups, func(i, j int) bool { return rep.Groups[i].Rebalances < rep.Groups[j].Rebalances })
}
