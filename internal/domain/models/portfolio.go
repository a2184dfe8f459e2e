package models

import "time"

// RebalanceEvent records one applied, confirmed rebalance. Immutable once logged.
type RebalanceEvent struct {
	ID       string       `json:"id"`
	Date     time.Time    `json:"date"`
	Period   int          `json:"period"`
	Signal   float64      `json:"signal"`
	Bucket   Bucket       `json:"bucket"`
	Old      WeightVector `json:"old"`
	New      WeightVector `json:"new"`
	Turnover float64      `json:"turnover"`
	Cost     float64      `json:"cost"`
}

// PortfolioState is the running state of one simulation.
type PortfolioState struct {
	Weights WeightVector     `json:"weights"`
	Value   float64          `json:"value"`
	Events  []RebalanceEvent `json:"events"`
}

// SimulationResult is the output of a single run.
type SimulationResult struct {
	Dates         []time.Time      `json:"dates"`
	Returns       []float64        `json:"returns"`
	Rebalances    int              `json:"rebalances"`
	TotalCost     float64          `json:"total_cost"`
	Skipped       int              `json:"skipped"`        // periods dropped from Returns
	SkippedChecks int              `json:"skipped_checks"` // check periods without a signal
	Events        []RebalanceEvent `json:"events"`
	FinalWeights  WeightVector     `json:"final_weights"`
	FinalValue    float64          `json:"final_value"`
}

// PerformanceMetrics summarises a return series on a weekly calendar.
type PerformanceMetrics struct {
	TotalReturn  float64 `json:"total_return"`
	AnnualReturn float64 `json:"annual_return"`
	AnnualVol    float64 `json:"annual_vol"`
	Sharpe       float64 `json:"sharpe"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	Periods      int     `json:"periods"`
}

// RebalanceImpact compares returns around one rebalance against holding the old weights.
type RebalanceImpact struct {
	EventID        string    `json:"event_id"`
	Date           time.Time `json:"date"`
	Bucket         Bucket    `json:"bucket"`
	PreReturn      float64   `json:"pre_return"`
	PostReturn     float64   `json:"post_return"`
	Counterfactual float64   `json:"counterfactual"`
	Effect         float64   `json:"effect"`
	PostPeriods    int       `json:"post_periods"`
}

// Benchmark is a buy-and-hold reference allocation.
type Benchmark struct {
	Name    string             `json:"name"`
	Weights WeightVector       `json:"weights"`
	Metrics PerformanceMetrics `json:"metrics"`
}

// SimulationReport bundles a run with its derived analytics.
type SimulationReport struct {
	LowThreshold  float64            `json:"low_threshold"`
	HighThreshold float64            `json:"high_threshold"`
	Result        *SimulationResult  `json:"result"`
	Metrics       PerformanceMetrics `json:"metrics"`
	Benchmarks    []Benchmark        `json:"benchmarks"`
	Impacts       []RebalanceImpact  `json:"impacts"`
}
