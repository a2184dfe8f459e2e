package policy

import (
	"math"
	"time"

	"MHIRebal/internal/domain/models"
)

// TiltAdjuster nudges equity and gold against the recent move in real yield.
// A nil series makes every Apply a no-op.
type TiltAdjuster struct {
	cfg    TiltConfig
	aux    *models.Series
	policy *WeightPolicy
}

// NewTiltAdjuster binds the real-yield series to p. aux may be nil.
func NewTiltAdjuster(cfg TiltConfig, aux *models.Series, p *WeightPolicy) (*TiltAdjuster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TiltAdjuster{cfg: cfg, aux: aux, policy: p}, nil
}

// Available reports whether the overlay can ever change a target.
func (t *TiltAdjuster) Available() bool {
	return t != nil && t.cfg.Enabled && t.aux != nil && t.aux.Len() > 0
}

// Delta returns aux[ref] - aux[ref - lookback] and whether it is defined.
func (t *TiltAdjuster) Delta(ref time.Time) (float64, bool) {
	if !t.Available() {
		return 0, false
	}
	idx, ok := t.aux.IndexOf(ref)
	if !ok || idx < t.cfg.Lookback {
		return 0, false
	}
	d := t.aux.Values[idx] - t.aux.Values[idx-t.cfg.Lookback]
	if math.IsNaN(d) {
		return 0, false
	}
	return d, true
}

// Apply shifts Step from equity to gold when real yield fell by at least
// Threshold over Lookback periods, the opposite when it rose, then re-applies
// the cash cap and renormalization. The boolean reports whether a shift happened.
func (t *TiltAdjuster) Apply(target models.WeightVector, ref time.Time) (models.WeightVector, bool, error) {
	delta, ok := t.Delta(ref)
	if !ok {
		return target, false, nil
	}
	step := t.cfg.Step
	switch {
	case delta <= -t.cfg.Threshold:
		target.RiskB = clip01(target.RiskB + step)
		target.RiskA = clip01(target.RiskA - step)
	case delta >= t.cfg.Threshold:
		target.RiskA = clip01(target.RiskA + step)
		target.RiskB = clip01(target.RiskB - step)
	default:
		return target, false, nil
	}
	w, err := t.policy.Normalize(target)
	if err != nil {
		return target, false, err
	}
	return w, true, nil
}

func clip01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
