package simulation

import (
	"MHIRebal/internal/domain/models"
)

// DefaultImpactWindow is the number of periods compared on each side of a rebalance.
const DefaultImpactWindow = 12

// Impacts evaluates every rebalance event: the return of the old weights over
// the window before it, of the new weights over the window after it, and of
// the old weights over that same after-window had nothing changed.
func Impacts(frame *models.PriceFrame, events []models.RebalanceEvent, window int) []models.RebalanceImpact {
	if window < 1 {
		window = DefaultImpactWindow
	}
	n := frame.Len()
	out := make([]models.RebalanceImpact, 0, len(events))
	for _, ev := range events {
		i := ev.Period
		if i <= 0 || i >= n {
			continue
		}
		pre := windowReturns(frame, ev.Old, max(1, i-window+1), i+1)
		post := windowReturns(frame, ev.New, i+1, min(n, i+window+1))
		cf := windowReturns(frame, ev.Old, i+1, min(n, i+window+1))

		imp := models.RebalanceImpact{
			EventID:        ev.ID,
			Date:           ev.Date,
			Bucket:         ev.Bucket,
			PreReturn:      Compound(pre),
			PostReturn:     Compound(post),
			Counterfactual: Compound(cf),
			PostPeriods:    len(post),
		}
		imp.Effect = imp.PostReturn - imp.Counterfactual
		out = append(out, imp)
	}
	return out
}

// windowReturns holds w over rows [from, to), skipping rows with missing prices.
func windowReturns(frame *models.PriceFrame, w models.WeightVector, from, to int) []float64 {
	out := make([]float64, 0, max(0, to-from))
	for t := from; t < to; t++ {
		r, err := frame.Returns(t)
		if err != nil {
			continue
		}
		out = append(out, w.Dot(r))
	}
	return out
}

// ImpactSummary aggregates the per-event effects.
type ImpactSummary struct {
	Events      int     `json:"events"`
	Positive    int     `json:"positive"`
	TotalEffect float64 `json:"total_effect"`
}

// SummarizeImpacts totals per-event impacts into one summary.
func SummarizeImpacts(imps []models.RebalanceImpact) ImpactSummary {
	s := ImpactSummary{Events: len(imps)}
	for _, imp := range imps {
		s.TotalEffect += imp.Effect
		if imp.Effect > 0 {
			s.Positive++
		}
	}
	return s
}
