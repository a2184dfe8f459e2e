package simulation

import (
	"math"

	"MHIRebal/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

// PeriodsPerYear is the annualisation factor for weekly returns.
const PeriodsPerYear = 52

// flatVol is the annualised volatility treated as zero.
const flatVol = 1e-12

// ComputeMetrics summarises a periodic return series.
//
//	total   = prod(1 + r) - 1
//	annual  = (1 + total)^(52/n) - 1
//	vol     = sample std(r) * sqrt(52)
//	sharpe  = annual / vol, 0 when vol is 0
//	max dd  = min over t of value_t / peak_t - 1, starting from a value of 1
func ComputeMetrics(returns []float64) models.PerformanceMetrics {
	m := models.PerformanceMetrics{Periods: len(returns)}
	if len(returns) == 0 {
		return m
	}
	curve := Curve(returns)
	m.TotalReturn = curve[len(curve)-1] - 1

	years := float64(len(returns)) / PeriodsPerYear
	if years > 0 && m.TotalReturn > -1 {
		m.AnnualReturn = math.Pow(1+m.TotalReturn, 1/years) - 1
	} else if m.TotalReturn <= -1 {
		m.AnnualReturn = -1
	}
	if len(returns) > 1 {
		m.AnnualVol = stat.StdDev(returns, nil) * math.Sqrt(PeriodsPerYear)
		if m.AnnualVol < flatVol {
			m.AnnualVol = 0
		}
	}
	if m.AnnualVol > 0 {
		m.Sharpe = m.AnnualReturn / m.AnnualVol
	}
	m.MaxDrawdown = MaxDrawdown(curve)
	return m
}

// Curve compounds returns into a value path starting at 1 (not included).
func Curve(returns []float64) []float64 {
	out := make([]float64, len(returns))
	v := 1.0
	for i, r := range returns {
		v *= 1 + r
		out[i] = v
	}
	return out
}

// MaxDrawdown returns the deepest fall from a running peak as a non-positive fraction.
func MaxDrawdown(curve []float64) float64 {
	peak := 1.0
	worst := 0.0
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := v/peak - 1; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// Compound returns prod(1 + r) - 1 over a slice.
func Compound(returns []float64) float64 {
	v := 1.0
	for _, r := range returns {
		v *= 1 + r
	}
	return v - 1
}
