package repository

import (
	"math"
	"sort"
	"strings"
	"time"

	"MHIRebal/internal/domain/models"
)

// Column names shared by the CSV header and the ClickHouse series key.
const (
	ColRiskA        = "risk_a"
	ColRiskB        = "risk_b"
	ColRiskC        = "risk_c"
	ColVolatility   = "volatility"
	ColRealYield    = "real_yield"
	ColCreditSpread = "credit_spread"
	SectorPrefix    = "sector_"
)

var coreColumns = []string{ColRiskA, ColRiskB, ColRiskC, ColVolatility}

// weeklyTable collects (date, column, value) cells from any source and
// assembles them into a PriceFrame or a single Series.
type weeklyTable struct {
	cells   map[time.Time]map[string]float64
	sectors map[string]struct{}
	dups    int
}

func newWeeklyTable() *weeklyTable {
	return &weeklyTable{
		cells:   map[time.Time]map[string]float64{},
		sectors: map[string]struct{}{},
	}
}

// day truncates t to a UTC calendar date.
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// set stores v, the last write winning on duplicate dates.
func (w *weeklyTable) set(date time.Time, col string, v float64) {
	date = day(date)
	row, ok := w.cells[date]
	if !ok {
		row = map[string]float64{}
		w.cells[date] = row
	}
	if _, seen := row[col]; seen {
		w.dups++
	}
	row[col] = v
	if name, ok := strings.CutPrefix(col, SectorPrefix); ok {
		w.sectors[name] = struct{}{}
	}
}

func (w *weeklyTable) dates(start time.Time) []time.Time {
	out := make([]time.Time, 0, len(w.cells))
	for d := range w.cells {
		if !start.IsZero() && d.Before(day(start)) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// frame builds the price table. Rows lacking a core column, or carrying a
// non-finite one, are dropped; missing sector values stay NaN.
func (w *weeklyTable) frame(start time.Time) (*models.PriceFrame, int) {
	f := &models.PriceFrame{Sectors: make(map[string][]float64, len(w.sectors))}
	dropped := 0
	for _, d := range w.dates(start) {
		row := w.cells[d]
		if !complete(row) {
			dropped++
			continue
		}
		f.Dates = append(f.Dates, d)
		f.RiskA = append(f.RiskA, row[ColRiskA])
		f.RiskB = append(f.RiskB, row[ColRiskB])
		f.RiskC = append(f.RiskC, row[ColRiskC])
		f.Volatility = append(f.Volatility, row[ColVolatility])
		for name := range w.sectors {
			v, ok := row[SectorPrefix+name]
			if !ok {
				v = math.NaN()
			}
			f.Sectors[name] = append(f.Sectors[name], v)
		}
	}
	return f, dropped
}

func complete(row map[string]float64) bool {
	for _, c := range coreColumns {
		v, ok := row[c]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// series extracts one column as a dense series, or nil when the column never appears.
func (w *weeklyTable) series(col string, start time.Time) *models.Series {
	s := &models.Series{Name: col}
	for _, d := range w.dates(start) {
		v, ok := w.cells[d][col]
		if !ok || math.IsNaN(v) {
			continue
		}
		s.Dates = append(s.Dates, d)
		s.Values = append(s.Values, v)
	}
	if s.Len() == 0 {
		return nil
	}
	return s
}
