package policy

import (
	"fmt"
	"math"

	"MHIRebal/internal/domain/models"
)

// WeightPolicy maps a signal value to a bucket and a cash-capped target allocation.
type WeightPolicy struct {
	cfg Config
}

// NewWeightPolicy validates cfg and returns a policy for it.
func NewWeightPolicy(cfg Config) (*WeightPolicy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &WeightPolicy{cfg: cfg}, nil
}

func (p *WeightPolicy) Config() Config { return p.cfg }

// Classify buckets a signal: LOW at or below the low threshold, HIGH at or
// above the high threshold, NEUTRAL otherwise.
func (p *WeightPolicy) Classify(signal float64) models.Bucket {
	switch {
	case signal <= p.cfg.LowThreshold:
		return models.BucketLow
	case signal >= p.cfg.HighThreshold:
		return models.BucketHigh
	default:
		return models.BucketNeutral
	}
}

// Template returns the raw allocation template for a bucket.
func (p *WeightPolicy) Template(b models.Bucket) models.WeightVector {
	switch b {
	case models.BucketLow:
		return p.cfg.Low
	case models.BucketHigh:
		return p.cfg.High
	default:
		return p.cfg.Base
	}
}

// Target classifies the signal and returns the normalized template for its bucket.
func (p *WeightPolicy) Target(signal float64) (models.Bucket, models.WeightVector, error) {
	if math.IsNaN(signal) {
		return "", models.WeightVector{}, fmt.Errorf("%w: signal undefined", models.ErrMissingData)
	}
	b := p.Classify(signal)
	w, err := p.Normalize(p.Template(b))
	if err != nil {
		return b, models.WeightVector{}, err
	}
	return b, w, nil
}

// Normalize applies the cash cap and rescales the risk sleeves.
func (p *WeightPolicy) Normalize(w models.WeightVector) (models.WeightVector, error) {
	return Normalize(w, p.cfg.CashMax, p.cfg.Legacy)
}

// Normalize caps cash at cashMax and rescales the three risk sleeves so the
// vector sums to one, flooring each at zero. A zero risk sum cannot be
// rescaled: it is an error unless legacy is set, in which case the capped
// vector is returned as is and sums to less than one.
func Normalize(w models.WeightVector, cashMax float64, legacy bool) (models.WeightVector, error) {
	w.Cash = math.Min(w.Cash, cashMax)
	s := w.RiskSum()
	if s <= 0 {
		if legacy {
			return w, nil
		}
		return w, models.ErrDegenerateNormalization
	}
	scale := (1 - w.Cash) / s
	for _, a := range models.RiskAssets {
		w = w.With(a, math.Max(0, w.Get(a)*scale))
	}
	return w, nil
}
