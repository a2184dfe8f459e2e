package simulation

import (
	"context"
	"fmt"
	"math"
	"time"

	"MHIRebal/internal/domain/models"
	"MHIRebal/internal/services/policy"
	applogger "MHIRebal/pkg/logger"

	"github.com/google/uuid"
)

// Config controls the weekly loop.
type Config struct {
	Cadence       int // periods between policy checks
	Warmup        int // first period at which the gate is consulted
	ConfirmWindow int // gate size
	SkipMissing   bool
	Start         models.WeightVector
	CashMax       float64
}

// DefaultConfig returns a four-week cadence, twelve warmup periods and a
// three-check gate starting from the base template.
func DefaultConfig() Config {
	return Config{
		Cadence:       4,
		Warmup:        12,
		ConfirmWindow: 3,
		Start:         policy.DefaultConfig().Base,
		CashMax:       policy.DefaultConfig().CashMax,
	}
}

// Validate checks cadence, warmup, gate size and the start allocation.
func (c Config) Validate() error {
	if c.Cadence < 1 {
		return fmt.Errorf("%w: cadence %d must be positive", models.ErrInvalidConfig, c.Cadence)
	}
	if c.Warmup < 0 || c.ConfirmWindow < 1 {
		return fmt.Errorf("%w: warmup %d / confirm window %d", models.ErrInvalidConfig, c.Warmup, c.ConfirmWindow)
	}
	if err := c.Start.Validate(c.CashMax); err != nil {
		return fmt.Errorf("%w: start allocation: %v", models.ErrInvalidConfig, err)
	}
	return nil
}

// Engine runs one deterministic simulation. It holds no per-run state and
// may be shared by concurrent runs.
type Engine struct {
	cfg   Config
	chain *policy.Chain
	cost  *policy.CostModel
	l     *applogger.Logger
}

// NewEngine validates cfg and requires a policy chain and cost model. A
// nil logger is replaced by a no-op one.
func NewEngine(cfg Config, chain *policy.Chain, cost *policy.CostModel, l *applogger.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if chain == nil || chain.Weights == nil || cost == nil {
		return nil, fmt.Errorf("%w: simulation needs a policy chain and cost model", models.ErrInvalidConfig)
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Engine{cfg: cfg, chain: chain, cost: cost, l: l.Component("simulation")}, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Run walks the frame period by period. The return at t uses the weights in
// force entering t. On check periods the policy chain proposes a target, the
// gate authorizes it against the previous check buckets, and an authorized
// rebalance is charged against the same period's return.
func (e *Engine) Run(ctx context.Context, frame *models.PriceFrame, signal models.Series) (*models.SimulationResult, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	n := frame.Len()
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least two periods, have %d", models.ErrInsufficientHistory, n)
	}
	sig := signal.Align(frame.Dates).Values
	pol := e.chain.Weights.Config()
	runKey := fmt.Sprintf("%g:%g:%s", pol.LowThreshold, pol.HighThreshold, frame.Dates[0].Format(time.DateOnly))

	state := models.PortfolioState{Weights: e.cfg.Start, Value: 1, Events: []models.RebalanceEvent{}}
	gate := policy.NewGate(e.cfg.ConfirmWindow)
	res := &models.SimulationResult{
		Dates:   make([]time.Time, 0, n-1),
		Returns: make([]float64, 0, n-1),
	}

	for t := 0; t < n; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		date := frame.Dates[t]

		net := 0.0
		if t > 0 {
			r, err := frame.Returns(t)
			if err != nil {
				if !e.cfg.SkipMissing {
					return nil, fmt.Errorf("period %d: %w", t, err)
				}
				res.Skipped++
				e.l.Debug("period skipped", applogger.Date("date", date), applogger.Error(err))
				continue
			}
			net = state.Weights.Dot(r)
		}

		if t%e.cfg.Cadence == 0 {
			s := sig[t]
			if math.IsNaN(s) {
				if !e.cfg.SkipMissing {
					return nil, fmt.Errorf("period %d signal at %s: %w", t, date.Format(time.DateOnly), models.ErrMissingData)
				}
				res.SkippedChecks++
			} else {
				cand, err := e.chain.Candidate(s, date)
				if err != nil {
					return nil, fmt.Errorf("period %d: %w", t, err)
				}
				if t >= e.cfg.Warmup && gate.Authorize(cand.Bucket) {
					if err := cand.Target.Validate(e.cfg.CashMax); err != nil {
						return nil, fmt.Errorf("period %d target: %w", t, err)
					}
					cost := e.cost.Estimate(state.Weights, cand.Target)
					net -= cost
					ev := models.RebalanceEvent{
						ID:       uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", runKey, t))).String(),
						Date:     date,
						Period:   t,
						Signal:   s,
						Bucket:   cand.Bucket,
						Old:      state.Weights,
						New:      cand.Target,
						Turnover: state.Weights.Turnover(cand.Target),
						Cost:     cost,
					}
					state.Events = append(state.Events, ev)
					res.Rebalances++
					res.TotalCost += cost
					state.Weights = cand.Target
					e.l.Debug("rebalance applied",
						applogger.Date("date", date),
						applogger.String("bucket", string(cand.Bucket)),
						applogger.Float("signal", s),
						applogger.Float("cost", cost),
					)
				}
				gate.Push(cand.Bucket)
			}
		}

		if t > 0 {
			res.Dates = append(res.Dates, date)
			res.Returns = append(res.Returns, net)
			state.Value *= 1 + net
		}
	}

	res.Events = state.Events
	res.FinalWeights = state.Weights
	res.FinalValue = state.Value
	return res, nil
}
