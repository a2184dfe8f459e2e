package simulation

import (
	"fmt"

	"MHIRebal/internal/domain/models"
)

// FixedMixReturns returns the period returns of holding w constant over the frame.
// Periods with a missing price are dropped when skip is set, otherwise they fail.
func FixedMixReturns(frame *models.PriceFrame, w models.WeightVector, skip bool) ([]float64, error) {
	out := make([]float64, 0, frame.Len())
	for t := 1; t < frame.Len(); t++ {
		r, err := frame.Returns(t)
		if err != nil {
			if skip {
				continue
			}
			return nil, fmt.Errorf("benchmark period %d: %w", t, err)
		}
		out = append(out, w.Dot(r))
	}
	return out, nil
}

// StandardBenchmarks lists the reference allocations reported next to a run.
func StandardBenchmarks(base models.WeightVector) []models.Benchmark {
	third := 1.0 / 3.0
	return []models.Benchmark{
		{Name: "base_allocation", Weights: base},
		{Name: "equal_risk", Weights: models.WeightVector{RiskA: third, RiskB: third, RiskC: 1 - 2*third}},
		{Name: "risk_a_only", Weights: models.WeightVector{RiskA: 1}},
		{Name: "risk_b_only", Weights: models.WeightVector{RiskB: 1}},
		{Name: "risk_c_only", Weights: models.WeightVector{RiskC: 1}},
	}
}

// Benchmarks computes metrics for each reference allocation.
func Benchmarks(frame *models.PriceFrame, refs []models.Benchmark, skip bool) ([]models.Benchmark, error) {
	out := make([]models.Benchmark, 0, len(refs))
	for _, b := range refs {
		rets, err := FixedMixReturns(frame, b.Weights, skip)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name, err)
		}
		b.Metrics = ComputeMetrics(rets)
		out = append(out, b)
	}
	return out, nil
}
