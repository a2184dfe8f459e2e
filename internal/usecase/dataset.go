package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"MHIRebal/internal/domain/models"
	domrepo "MHIRebal/internal/domain/repository"
	"MHIRebal/internal/services/indicators"
	applogger "MHIRebal/pkg/logger"
)

// creditSignalName marks a cached composite that includes the credit component.
const creditSignalName = "mhi+credit"

// Dataset is everything a decision or simulation needs, restricted to the
// dates on which the composite signal is defined.
type Dataset struct {
	Frame      *models.PriceFrame
	Signal     models.Series
	RealYield  *models.Series // aligned to the full price calendar, nil without a macro feed
	UsesCredit bool
	MacroOK    bool
}

// DatasetLoader pulls the feeds and builds the composite signal.
type DatasetLoader struct {
	prices  domrepo.PriceFeed
	macro   domrepo.MacroFeed
	cache   domrepo.SignalCache
	engine  *indicators.Engine
	start   time.Time
	metrics domrepo.Metrics
	l       *applogger.Logger
}

// NewDatasetLoader wires the loader. macro, cache and metrics may be nil.
func NewDatasetLoader(prices domrepo.PriceFeed, macro domrepo.MacroFeed, cache domrepo.SignalCache,
	engine *indicators.Engine, start time.Time, metrics domrepo.Metrics, l *applogger.Logger) *DatasetLoader {
	if l == nil {
		l = applogger.Nop()
	}
	return &DatasetLoader{
		prices:  prices,
		macro:   macro,
		cache:   cache,
		engine:  engine,
		start:   start,
		metrics: metrics,
		l:       l.Component("dataset"),
	}
}

// Load fetches prices and macro inputs and returns the signal-aligned dataset.
// A failing macro feed disables the credit component and the tilt overlay
// instead of failing the load.
func (d *DatasetLoader) Load(ctx context.Context) (*Dataset, error) {
	began := time.Now()
	frame, err := d.prices.LoadWeekly(ctx, d.start)
	if err != nil {
		d.recordError("price_feed")
		return nil, fmt.Errorf("load prices from %s: %w", d.prices.Name(), err)
	}
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	if frame.Len() == 0 {
		return nil, fmt.Errorf("%w: %s returned no rows", models.ErrInsufficientHistory, d.prices.Name())
	}

	var macro models.MacroSeries
	macroOK := false
	if d.macro != nil {
		macro, err = d.macro.LoadMacro(ctx, d.start)
		switch {
		case err == nil:
			macroOK = true
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		default:
			d.recordError("macro_feed")
			d.l.Warn("macro feed unavailable, credit component and tilt disabled",
				applogger.String("feed", d.macro.Name()),
				applogger.Error(err),
			)
			macro = models.MacroSeries{}
		}
	}

	sig, usesCredit, err := d.signal(ctx, frame, macro)
	if err != nil {
		return nil, err
	}

	idx := make([]int, 0, sig.Len())
	ref := models.Series{Dates: frame.Dates}
	for _, dt := range sig.Dates {
		if i, ok := ref.IndexOf(dt); ok {
			idx = append(idx, i)
		}
	}
	ds := &Dataset{
		Frame:      frame.Rows(idx),
		Signal:     sig,
		UsesCredit: usesCredit,
		MacroOK:    macroOK,
	}
	if macro.RealYield != nil {
		ry := macro.RealYield.Align(frame.Dates)
		ds.RealYield = &ry
	}
	if d.metrics != nil {
		d.metrics.RecordLatency("dataset_load", time.Since(began).Seconds())
		if _, v, ok := sig.Last(); ok {
			d.metrics.RecordSignal(v)
		}
	}
	d.l.Debug("dataset loaded",
		applogger.Int("rows", frame.Len()),
		applogger.Int("signal_rows", sig.Len()),
		applogger.Bool("credit", usesCredit),
		applogger.Bool("macro", macroOK),
		applogger.Duration("took", time.Since(began)),
	)
	return ds, nil
}

func (d *DatasetLoader) signal(ctx context.Context, frame *models.PriceFrame, macro models.MacroSeries) (models.Series, bool, error) {
	key := d.fingerprint(frame, macro)
	if d.cache != nil {
		cached, ok, err := d.cache.GetSignal(ctx, key)
		if err != nil {
			d.l.Warn("signal cache read failed", applogger.String("key", key), applogger.Error(err))
		} else if ok && cached != nil {
			return *cached, cached.Name == creditSignalName, nil
		}
	}

	built, err := d.engine.Build(frame, macro)
	if err != nil {
		return models.Series{}, false, err
	}
	sig := built.Composite
	if built.UsesCredit {
		sig.Name = creditSignalName
	}
	if d.cache != nil {
		if err := d.cache.PutSignal(ctx, key, &sig); err != nil {
			d.l.Warn("signal cache write failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return sig, built.UsesCredit, nil
}

// fingerprint identifies the inputs a composite was built from.
func (d *DatasetLoader) fingerprint(frame *models.PriceFrame, macro models.MacroSeries) string {
	cfg := d.engine.Config()
	last := frame.Dates[frame.Len()-1]
	credit := "none"
	if macro.CreditSpread != nil {
		if dt, _, ok := macro.CreditSpread.Last(); ok {
			credit = fmt.Sprintf("%d@%s", macro.CreditSpread.Len(), dt.Format(time.DateOnly))
		}
	}
	return fmt.Sprintf("signal:%s:%s:%d:%s:z%d:b%d:c%t:%s:%s",
		d.prices.Name(),
		frame.Dates[0].Format(time.DateOnly),
		frame.Len(),
		last.Format(time.DateOnly),
		cfg.ZWindow, cfg.BreadthWindow, cfg.UseCredit,
		credit,
		valuesDigest(frame, macro),
	)
}

// valuesDigest hashes every value the composite reads, so corrected rows under
// unchanged dates get a new key.
func valuesDigest(frame *models.PriceFrame, macro models.MacroSeries) string {
	h := sha256.New()
	var buf [8]byte
	put := func(xs []float64) {
		for _, x := range xs {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
			h.Write(buf[:])
		}
	}
	put(frame.Volatility)
	for _, name := range frame.SectorNames() {
		h.Write([]byte(name))
		put(frame.Sectors[name])
	}
	if macro.CreditSpread != nil {
		put(macro.CreditSpread.Values)
	}
	return hex.EncodeToString(h.Sum(nil)[:12])
}

func (d *DatasetLoader) recordError(kind string) {
	if d.metrics != nil {
		d.metrics.RecordError(kind)
	}
}
