package models

// Requests for the decision and simulation HTTP endpoints. Defined in domain for reuse by the CLI.

type DecisionRequest struct {
	RiskA float64 `query:"risk_a" json:"risk_a" validate:"gte=0,lte=1"`
	RiskB float64 `query:"risk_b" json:"risk_b" validate:"gte=0,lte=1"`
	RiskC float64 `query:"risk_c" json:"risk_c" validate:"gte=0,lte=1"`
}

type BacktestRequest struct {
	Low         float64 `json:"low" default:"-1.75" validate:"lt=0"`
	High        float64 `json:"high" default:"1.75" validate:"gt=0"`
	SkipMissing bool    `json:"skip_missing"`
	CostPreset  string  `json:"cost_preset" validate:"omitempty,oneof=standard conservative zero"`
	NoAnalysis  bool    `json:"no_analysis"`
}

type SweepRequest struct {
	Lows        []float64 `json:"lows" validate:"required,min=1,max=64,dive,lt=0"`
	Highs       []float64 `json:"highs" validate:"required,min=1,max=64,dive,gt=0"`
	Workers     int       `json:"workers" default:"4" validate:"gte=1,lte=64"`
	CostPreset  string    `json:"cost_preset" validate:"omitempty,oneof=standard conservative zero"`
	Top         int       `json:"top" default:"10" validate:"gte=1,lte=100"`
	SkipMissing bool      `json:"skip_missing"`
}

// Pairs expands the request into the cartesian threshold grid.
func (r *SweepRequest) Pairs() []ThresholdPair {
	out := make([]ThresholdPair, 0, len(r.Lows)*len(r.Highs))
	for _, lo := range r.Lows {
		for _, hi := range r.Highs {
			out = append(out, ThresholdPair{Low: lo, High: hi})
		}
	}
	return out
}
