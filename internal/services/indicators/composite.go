package indicators

import (
	"fmt"
	"math"
	"time"

	"MHIRebal/internal/domain/models"
	applogger "MHIRebal/pkg/logger"
)

// Config holds the indicator windows.
type Config struct {
	ZWindow       int  // rolling z-score window, in periods
	BreadthWindow int  // sector moving-average window, in periods
	UseCredit     bool // include the credit-spread component when the feed provides it
}

// DefaultConfig matches a five-year z-score on weekly data with a 40-week breadth average.
func DefaultConfig() Config {
	return Config{ZWindow: 260, BreadthWindow: 40, UseCredit: true}
}

// Validate checks the rolling window lengths.
func (c Config) Validate() error {
	if c.ZWindow < 2 {
		return fmt.Errorf("%w: z window %d must be at least 2", models.ErrInvalidConfig, c.ZWindow)
	}
	if c.BreadthWindow < 2 {
		return fmt.Errorf("%w: breadth window %d must be at least 2", models.ErrInvalidConfig, c.BreadthWindow)
	}
	return nil
}

// Component is one signed, normalized factor of the composite.
type Component struct {
	Name string
	Sign float64
	Z    models.Series
}

// Signal is the composite indicator together with its inputs.
type Signal struct {
	// Composite holds only the dates where every component is defined.
	Composite  models.Series
	Components []Component
	UsesCredit bool
}

// Engine turns raw weekly series into the composite signal.
type Engine struct {
	cfg Config
	l   *applogger.Logger
}

// NewEngine validates cfg and returns a composite engine.
func NewEngine(cfg Config, l *applogger.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Engine{cfg: cfg, l: l.Component("indicators")}, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Build computes -z(volatility), +z(breadth) and, when available, -z(credit),
// and averages them over the rows where all of them are defined. Whether the
// credit component is used is decided once for the whole frame.
func (e *Engine) Build(frame *models.PriceFrame, macro models.MacroSeries) (*Signal, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	if len(frame.Sectors) == 0 {
		return nil, fmt.Errorf("%w: no sector series for breadth", models.ErrMissingData)
	}

	vol := models.Series{Name: "volatility", Dates: frame.Dates, Values: frame.Volatility}
	breadth := Breadth(frame.Dates, frame.Sectors, e.cfg.BreadthWindow)

	comps := []Component{
		{Name: "volatility", Sign: -1, Z: ZScoreSeries(vol, e.cfg.ZWindow, "z_volatility")},
		{Name: "breadth", Sign: 1, Z: ZScoreSeries(breadth, e.cfg.ZWindow, "z_breadth")},
	}

	usesCredit := false
	if e.cfg.UseCredit && macro.CreditSpread != nil {
		credit := macro.CreditSpread.Align(frame.Dates)
		if credit.DefinedCount() > 0 {
			comps = append(comps, Component{Name: "credit", Sign: -1, Z: ZScoreSeries(credit, e.cfg.ZWindow, "z_credit")})
			usesCredit = true
		} else {
			e.l.Warn("credit spread has no overlap with price calendar, component disabled")
		}
	}

	composite := Combine(frame.Dates, comps)
	e.l.Debug("composite signal built",
		applogger.Int("rows", frame.Len()),
		applogger.Int("defined", composite.Len()),
		applogger.Bool("credit", usesCredit),
	)
	return &Signal{Composite: composite, Components: comps, UsesCredit: usesCredit}, nil
}

// Combine averages the signed components, dropping any row where one is undefined.
func Combine(dates []time.Time, comps []Component) models.Series {
	out := models.Series{Name: "mhi"}
	if len(comps) == 0 {
		return out
	}
	for i, d := range dates {
		sum := 0.0
		ok := true
		for _, c := range comps {
			v := c.Z.Values[i]
			if math.IsNaN(v) {
				ok = false
				break
			}
			sum += c.Sign * v
		}
		if !ok {
			continue
		}
		out.Dates = append(out.Dates, d)
		out.Values = append(out.Values, sum/float64(len(comps)))
	}
	return out
}
