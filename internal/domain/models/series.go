package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Series is a date-indexed scalar series. NaN marks an undefined value.
type Series struct {
	Name   string      `json:"name"`
	Dates  []time.Time `json:"dates"`
	Values []float64   `json:"values"`
}

// NewSeries builds a series, checking that dates and values line up.
func NewSeries(name string, dates []time.Time, values []float64) (Series, error) {
	if len(dates) != len(values) {
		return Series{}, fmt.Errorf("series %s: %d dates but %d values", name, len(dates), len(values))
	}
	return Series{Name: name, Dates: dates, Values: values}, nil
}

func (s Series) Len() int { return len(s.Values) }

// Defined reports whether position i holds a usable value.
func (s Series) Defined(i int) bool {
	return i >= 0 && i < len(s.Values) && !math.IsNaN(s.Values[i])
}

// IndexOf returns the position of date t. Dates must be ascending.
func (s Series) IndexOf(t time.Time) (int, bool) {
	i := sort.Search(len(s.Dates), func(i int) bool { return !s.Dates[i].Before(t) })
	if i < len(s.Dates) && s.Dates[i].Equal(t) {
		return i, true
	}
	return -1, false
}

// Align resamples the series onto dates, leaving NaN where it has no observation.
func (s Series) Align(dates []time.Time) Series {
	out := make([]float64, len(dates))
	for i, d := range dates {
		if j, ok := s.IndexOf(d); ok {
			out[i] = s.Values[j]
			continue
		}
		out[i] = math.NaN()
	}
	return Series{Name: s.Name, Dates: dates, Values: out}
}

// Last returns the final value and its date.
func (s Series) Last() (time.Time, float64, bool) {
	if len(s.Values) == 0 {
		return time.Time{}, math.NaN(), false
	}
	n := len(s.Values) - 1
	return s.Dates[n], s.Values[n], true
}

// DefinedCount returns the number of non-NaN values.
func (s Series) DefinedCount() int {
	n := 0
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// MacroSeries carries the optional auxiliary inputs. A nil field means the input is absent.
type MacroSeries struct {
	RealYield    *Series
	CreditSpread *Series
}

// PriceFrame is an aligned weekly table of sleeve prices and indicator inputs.
type PriceFrame struct {
	Dates      []time.Time
	RiskA      []float64
	RiskB      []float64
	RiskC      []float64
	Volatility []float64
	Sectors    map[string][]float64
}

func (f *PriceFrame) Len() int { return len(f.Dates) }

// SectorNames returns sector keys in sorted order.
func (f *PriceFrame) SectorNames() []string {
	names := make([]string, 0, len(f.Sectors))
	for k := range f.Sectors {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate checks column lengths and strictly increasing dates.
func (f *PriceFrame) Validate() error {
	n := len(f.Dates)
	cols := map[string][]float64{
		"risk_a":     f.RiskA,
		"risk_b":     f.RiskB,
		"risk_c":     f.RiskC,
		"volatility": f.Volatility,
	}
	for name, col := range cols {
		if len(col) != n {
			return fmt.Errorf("price frame: column %s has %d rows, want %d", name, len(col), n)
		}
	}
	for name, col := range f.Sectors {
		if len(col) != n {
			return fmt.Errorf("price frame: sector %s has %d rows, want %d", name, len(col), n)
		}
	}
	for i := 1; i < n; i++ {
		if !f.Dates[i].After(f.Dates[i-1]) {
			return fmt.Errorf("price frame: dates not strictly increasing at %s", f.Dates[i].Format(time.DateOnly))
		}
	}
	return nil
}

// Prices returns the sleeve prices at row i. Cash is fixed at 1.
func (f *PriceFrame) Prices(i int) WeightVector {
	return WeightVector{RiskA: f.RiskA[i], RiskB: f.RiskB[i], RiskC: f.RiskC[i], Cash: 1}
}

// Returns computes simple sleeve returns over [t-1, t]. Cash earns zero.
func (f *PriceFrame) Returns(t int) (WeightVector, error) {
	if t <= 0 || t >= f.Len() {
		return WeightVector{}, fmt.Errorf("returns: row %d out of range", t)
	}
	prev, cur := f.Prices(t-1), f.Prices(t)
	var r WeightVector
	for _, a := range RiskAssets {
		p0, p1 := prev.Get(a), cur.Get(a)
		if math.IsNaN(p0) || math.IsNaN(p1) || p0 <= 0 || p1 <= 0 {
			return WeightVector{}, fmt.Errorf("%w: %s price at %s", ErrMissingData, a, f.Dates[t].Format(time.DateOnly))
		}
		r = r.With(a, p1/p0-1)
	}
	return r, nil
}

// Rows returns a new frame holding only the given row indices.
func (f *PriceFrame) Rows(idx []int) *PriceFrame {
	pick := func(col []float64) []float64 {
		out := make([]float64, len(idx))
		for i, j := range idx {
			out[i] = col[j]
		}
		return out
	}
	out := &PriceFrame{
		Dates:      make([]time.Time, len(idx)),
		RiskA:      pick(f.RiskA),
		RiskB:      pick(f.RiskB),
		RiskC:      pick(f.RiskC),
		Volatility: pick(f.Volatility),
		Sectors:    make(map[string][]float64, len(f.Sectors)),
	}
	for i, j := range idx {
		out.Dates[i] = f.Dates[j]
	}
	for k, col := range f.Sectors {
		out.Sectors[k] = pick(col)
	}
	return out
}
