package policy

import (
	"fmt"
	"math"
	"sort"

	"MHIRebal/internal/domain/models"
)

const (
	PresetStandard     = "standard"
	PresetConservative = "conservative"
	PresetZero         = "zero"
)

// Cost presets seen across past calibrations. None of them is canonical.
var costPresets = map[string]models.WeightVector{
	// commission plus half-spread per sleeve
	PresetStandard:     {RiskA: 0.0005 + 0.0001, RiskB: 0.0010 + 0.0003, RiskC: 0.0025 + 0.0015},
	PresetConservative: {RiskA: 0.0008, RiskB: 0.0015, RiskC: 0.0040},
	PresetZero:         {},
}

// CostPreset returns the per-sleeve rates registered under name.
func CostPreset(name string) (models.WeightVector, error) {
	r, ok := costPresets[name]
	if !ok {
		return models.WeightVector{}, fmt.Errorf("%w: unknown cost preset %q (have %v)", models.ErrInvalidConfig, name, CostPresetNames())
	}
	return r, nil
}

// CostPresetNames returns the known preset names in sorted order.
func CostPresetNames() []string {
	out := make([]string, 0, len(costPresets))
	for k := range costPresets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CostModel charges a flat proportional rate on each sleeve's turnover.
type CostModel struct {
	rates models.WeightVector
}

// NewCostModel rejects negative or NaN rates.
func NewCostModel(rates models.WeightVector) (*CostModel, error) {
	for _, a := range models.Assets {
		if v := rates.Get(a); math.IsNaN(v) || v < 0 {
			return nil, fmt.Errorf("%w: cost rate %s=%v", models.ErrInvalidConfig, a, v)
		}
	}
	return &CostModel{rates: rates}, nil
}

func (c *CostModel) Rates() models.WeightVector { return c.rates }

// Estimate returns the cost of moving from old to target as a fraction of portfolio value.
func (c *CostModel) Estimate(old, target models.WeightVector) float64 {
	cost := 0.0
	for _, a := range models.Assets {
		cost += math.Abs(target.Get(a)-old.Get(a)) * c.rates.Get(a)
	}
	return cost
}
