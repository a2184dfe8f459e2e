package indicators

import (
	"math"
	"time"

	"MHIRebal/internal/domain/models"

	"github.com/markcheno/go-talib"
)

// MovingAverage returns the trailing simple moving average of values. The
// average is computed separately over each run of defined values, so a NaN
// restarts the warm-up instead of poisoning the rest of the series.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if window < 1 {
		return out
	}
	start := -1
	flush := func(end int) {
		if start < 0 || end-start < window {
			return
		}
		sma := talib.Sma(values[start:end], window)
		for j := window - 1; j < len(sma); j++ {
			out[start+j] = sma[j]
		}
	}
	for i, v := range values {
		if math.IsNaN(v) {
			flush(i)
			start = -1
			continue
		}
		if start < 0 {
			start = i
		}
	}
	flush(len(values))
	return out
}

// Breadth returns, per date, the fraction of sector series trading above
// their own trailing moving average. A sector without a defined average at a
// date counts as not above. Dates where no sector has a defined average are NaN.
func Breadth(dates []time.Time, sectors map[string][]float64, window int) models.Series {
	out := make([]float64, len(dates))
	total := float64(len(sectors))
	mas := make(map[string][]float64, len(sectors))
	for name, col := range sectors {
		mas[name] = MovingAverage(col, window)
	}
	for i := range dates {
		defined, above := 0, 0
		for name, col := range sectors {
			ma := mas[name][i]
			if math.IsNaN(ma) || math.IsNaN(col[i]) {
				continue
			}
			defined++
			if col[i] > ma {
				above++
			}
		}
		if defined == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = float64(above) / total
	}
	return models.Series{Name: "breadth", Dates: dates, Values: out}
}
