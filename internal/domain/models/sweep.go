package models

// ThresholdPair is one grid cell's classification cut points.
type ThresholdPair struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// SweepCell is the outcome of simulating one threshold pair.
type SweepCell struct {
	Index      int                `json:"index"`
	Pair       ThresholdPair      `json:"pair"`
	Rebalances int                `json:"rebalances"`
	TotalCost  float64            `json:"total_cost"`
	Metrics    PerformanceMetrics `json:"metrics"`
	Error      string             `json:"error,omitempty"`
}

// RebalanceGroup holds all cells that rebalanced the same number of times.
type RebalanceGroup struct {
	Rebalances int         `json:"rebalances"`
	Count      int         `json:"count"`
	Best       SweepCell   `json:"best"`
	Cells      []SweepCell `json:"cells"`
}

// SweepReport is the ranked outcome of a threshold grid.
type SweepReport struct {
	ID        string           `json:"id"`
	Total     int              `json:"total"`
	Completed int              `json:"completed"`
	Cancelled bool             `json:"cancelled"`
	BySharpe  []SweepCell      `json:"by_sharpe"`
	ByReturn  []SweepCell      `json:"by_return"`
	Groups    []RebalanceGroup `json:"groups"`
}
