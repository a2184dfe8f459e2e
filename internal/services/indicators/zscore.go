package indicators

import (
	"math"

	"MHIRebal/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

// zeroStd is the population std below which a window is treated as flat.
const zeroStd = 1e-12

// ZScore computes the rolling standardized value (x - mean_w) / std_w using the
// population standard deviation over the trailing window ending at each point.
// Positions with fewer than window observations, a NaN inside the window, or a
// flat window are NaN.
func ZScore(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if window < 1 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		if hasNaN(w) {
			continue
		}
		mean, std := stat.PopMeanStdDev(w, nil)
		if std <= zeroStd*math.Max(1, math.Abs(mean)) {
			continue
		}
		out[i] = (values[i] - mean) / std
	}
	return out
}

// ZScoreSeries applies ZScore to a series, keeping its date index.
func ZScoreSeries(s models.Series, window int, name string) models.Series {
	return models.Series{Name: name, Dates: s.Dates, Values: ZScore(s.Values, window)}
}

func hasNaN(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}
