package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"MHIRebal/internal/domain/models"
	applogger "MHIRebal/pkg/logger"
)

// WeeklySchema creates the long-format weekly table both ClickHouse feeds read.
func WeeklySchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            week       Date,
            series     LowCardinality(String),
            value      Float64,
            updated_at DateTime DEFAULT now()
        ) ENGINE = ReplacingMergeTree(updated_at)
        ORDER BY (series, week)
    `, table)}
}

// CHWeeklyFeed reads (week, series, value) rows from ClickHouse. Series keys
// use the same names as the CSV columns.
type CHWeeklyFeed struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHWeeklyFeed(db *sql.DB, table string, l *applogger.Logger) *CHWeeklyFeed {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHWeeklyFeed{db: db, table: table, l: l.Component("clickhouse_feed")}
}

func (s *CHWeeklyFeed) Name() string { return "clickhouse:" + s.table }

func (s *CHWeeklyFeed) LoadWeekly(ctx context.Context, start time.Time) (*models.PriceFrame, error) {
	const qtpl = `
        SELECT week, series, value
        FROM %s FINAL
        WHERE week >= ? AND series NOT IN (?, ?)
        ORDER BY week ASC
    `
	tbl, err := s.query(ctx, "load_weekly", fmt.Sprintf(qtpl, s.table), day(start), ColRealYield, ColCreditSpread)
	if err != nil {
		return nil, err
	}
	frame, dropped := tbl.frame(start)
	if dropped > 0 {
		s.l.Warn("clickhouse incomplete weeks dropped", applogger.String("table", s.table), applogger.Int("dropped", dropped))
	}
	if frame.Len() == 0 {
		return nil, fmt.Errorf("%w: %s has no complete weeks after %s", models.ErrMissingData, s.table, start.Format(time.DateOnly))
	}
	return frame, nil
}

func (s *CHWeeklyFeed) LoadMacro(ctx context.Context, start time.Time) (models.MacroSeries, error) {
	const qtpl = `
        SELECT week, series, value
        FROM %s FINAL
        WHERE week >= ? AND series IN (?, ?)
        ORDER BY week ASC
    `
	tbl, err := s.query(ctx, "load_macro", fmt.Sprintf(qtpl, s.table), day(start), ColRealYield, ColCreditSpread)
	if err != nil {
		return models.MacroSeries{}, fmt.Errorf("%w: %v", models.ErrFeedUnavailable, err)
	}
	m := models.MacroSeries{
		RealYield:    tbl.series(ColRealYield, start),
		CreditSpread: tbl.series(ColCreditSpread, start),
	}
	if m.RealYield == nil && m.CreditSpread == nil {
		return m, fmt.Errorf("%w: no macro rows in %s", models.ErrFeedUnavailable, s.table)
	}
	return m, nil
}

func (s *CHWeeklyFeed) query(ctx context.Context, op, q string, args ...any) (*weeklyTable, error) {
	began := time.Now()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse query error", applogger.String("op", op), applogger.String("table", s.table), applogger.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	tbl := newWeeklyTable()
	n := 0
	for rows.Next() {
		var (
			week   time.Time
			series string
			value  float64
		)
		if err := rows.Scan(&week, &series, &value); err != nil {
			s.l.Error("clickhouse scan error", applogger.String("op", op), applogger.String("table", s.table), applogger.Error(err))
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		tbl.set(week, series, value)
		n++
	}
	if err := rows.Err(); err != nil {
		s.l.Error("clickhouse rows error", applogger.String("op", op), applogger.String("table", s.table), applogger.Error(err))
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	s.l.Debug("clickhouse query ok",
		applogger.String("op", op),
		applogger.String("table", s.table),
		applogger.Int("rows", n),
		applogger.Duration("duration_ms", time.Since(began)),
	)
	return tbl, nil
}

// weeklyPoint is one long-format row of the weekly table.
type weeklyPoint struct {
	week   time.Time
	series string
	value  float64
}

func flatten(f *models.PriceFrame, m models.MacroSeries) []weeklyPoint {
	var out []weeklyPoint
	add := func(week time.Time, series string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
		out = append(out, weeklyPoint{week: day(week), series: series, value: v})
	}
	sectors := f.SectorNames()
	for i, d := range f.Dates {
		add(d, ColRiskA, f.RiskA[i])
		add(d, ColRiskB, f.RiskB[i])
		add(d, ColRiskC, f.RiskC[i])
		add(d, ColVolatility, f.Volatility[i])
		for _, name := range sectors {
			add(d, SectorPrefix+name, f.Sectors[name][i])
		}
	}
	for col, s := range map[string]*models.Series{ColRealYield: m.RealYield, ColCreditSpread: m.CreditSpread} {
		if s == nil {
			continue
		}
		for i, d := range s.Dates {
			add(d, col, s.Values[i])
		}
	}
	return out
}

// Store writes a frame and its macro series into the table in chunks.
// ReplacingMergeTree keeps the newest row per (series, week), so re-imports overwrite.
func (s *CHWeeklyFeed) Store(ctx context.Context, f *models.PriceFrame, m models.MacroSeries) (int, error) {
	const chunkSize = 2000
	points := flatten(f, m)
	for start := 0; start < len(points); start += chunkSize {
		end := min(start+chunkSize, len(points))
		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*3)
		for _, p := range points[start:end] {
			values = append(values, "(?, ?, ?)")
			args = append(args, p.week, p.series, p.value)
		}
		q := fmt.Sprintf("INSERT INTO %s (week, series, value) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse insert error", applogger.String("table", s.table), applogger.Int("offset", start), applogger.Error(err))
			return start, fmt.Errorf("store weekly rows %d-%d: %w", start, end, err)
		}
	}
	s.l.Info("weekly rows stored", applogger.String("table", s.table), applogger.Int("rows", len(points)))
	return len(points), nil
}
