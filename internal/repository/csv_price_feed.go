package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"MHIRebal/internal/domain/models"
	applogger "MHIRebal/pkg/logger"
)

// CSVFeed reads a materialised weekly table:
//
//	date,risk_a,risk_b,risk_c,volatility,sector_xlk,...,real_yield,credit_spread
//
// Empty cells are missing values. It serves both prices and, when the macro
// columns are present, the macro series.
type CSVFeed struct {
	path string
	l    *applogger.Logger
}

func NewCSVFeed(path string, l *applogger.Logger) *CSVFeed {
	if l == nil {
		l = applogger.Nop()
	}
	return &CSVFeed{path: path, l: l.Component("csv_feed")}
}

func (f *CSVFeed) Name() string { return "csv:" + f.path }

func (f *CSVFeed) LoadWeekly(ctx context.Context, start time.Time) (*models.PriceFrame, error) {
	tbl, err := f.read(ctx)
	if err != nil {
		return nil, err
	}
	frame, dropped := tbl.frame(start)
	if dropped > 0 || tbl.dups > 0 {
		f.l.Warn("csv rows cleaned",
			applogger.String("path", f.path),
			applogger.Int("dropped", dropped),
			applogger.Int("duplicates", tbl.dups),
		)
	}
	if frame.Len() == 0 {
		return nil, fmt.Errorf("%w: %s has no complete rows after %s", models.ErrMissingData, f.path, start.Format(time.DateOnly))
	}
	if len(frame.Sectors) == 0 {
		return nil, fmt.Errorf("%w: %s has no %s* columns", models.ErrMissingData, f.path, SectorPrefix)
	}
	f.l.Debug("csv prices loaded", applogger.String("path", f.path), applogger.Int("rows", frame.Len()))
	return frame, nil
}

func (f *CSVFeed) LoadMacro(ctx context.Context, start time.Time) (models.MacroSeries, error) {
	tbl, err := f.read(ctx)
	if err != nil {
		return models.MacroSeries{}, fmt.Errorf("%w: %v", models.ErrFeedUnavailable, err)
	}
	m := models.MacroSeries{
		RealYield:    tbl.series(ColRealYield, start),
		CreditSpread: tbl.series(ColCreditSpread, start),
	}
	if m.RealYield == nil && m.CreditSpread == nil {
		return m, fmt.Errorf("%w: %s has no macro columns", models.ErrFeedUnavailable, f.path)
	}
	return m, nil
}

func (f *CSVFeed) read(ctx context.Context) (*weeklyTable, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}
	defer fh.Close()
	return parseWeeklyCSV(ctx, fh)
}

func parseWeeklyCSV(ctx context.Context, r io.Reader) (*weeklyTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}
	if len(header) == 0 || header[0] != "date" {
		return nil, fmt.Errorf("csv header must start with a date column, got %v", header)
	}

	tbl := newWeeklyTable()
	line := 1
	for {
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		date, err := parseDate(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for i := 1; i < len(rec) && i < len(header); i++ {
			cell := strings.TrimSpace(rec[i])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, header[i], err)
			}
			tbl.set(date, header[i], v)
		}
	}
	return tbl, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.DateOnly, time.RFC3339, "2006/01/02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
