package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	rebalances  *prometheus.CounterVec
	costs       prometheus.Histogram
	signal      prometheus.Gauge
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	sweepCell   prometheus.Histogram
}

// New registers the collectors on reg, or on the default registry when reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		rebalances: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mhi_rebalances_total",
			Help: "Applied rebalances by target bucket",
		}, []string{"bucket"}),
		costs: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mhi_rebalance_cost_ratio",
			Help:    "Trading cost of each rebalance as a fraction of portfolio value",
			Buckets: []float64{0, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005},
		}),
		signal: f.NewGauge(prometheus.GaugeOpts{
			Name: "mhi_signal_latest",
			Help: "Most recent composite signal value",
		}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mhi_errors_total",
			Help: "Errors by kind",
		}, []string{"kind"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mhi_operation_duration_seconds",
			Help:    "Duration of operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		sweepCell: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mhi_sweep_cell_seconds",
			Help:    "Time to simulate one sweep cell",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
}

func (r *Recorder) RecordRebalance(bucket string, cost float64) {
	r.rebalances.WithLabelValues(bucket).Inc()
	r.costs.Observe(cost)
}

func (r *Recorder) RecordSignal(v float64) { r.signal.Set(v) }

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordSweepCell(seconds float64) { r.sweepCell.Observe(seconds) }

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRebalance(string, float64) {}
func (Nop) RecordSignal(float64)            {}
func (Nop) RecordError(string)              {}
func (Nop) RecordLatency(string, float64)   {}
func (Nop) RecordSweepCell(float64)         {}
