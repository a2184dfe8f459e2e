package policy

import (
	"fmt"
	"math"

	"MHIRebal/internal/domain/models"
)

// Config is the immutable allocation policy handed to WeightPolicy at construction.
type Config struct {
	LowThreshold  float64
	HighThreshold float64
	CashMax       float64
	Base          models.WeightVector
	Low           models.WeightVector
	High          models.WeightVector
	// Legacy leaves a degenerate template unscaled instead of failing.
	Legacy bool
}

// DefaultConfig returns the reference templates with symmetric ±1.75 thresholds.
func DefaultConfig() Config {
	return Config{
		LowThreshold:  -1.75,
		HighThreshold: 1.75,
		CashMax:       0.35,
		Base:          models.WeightVector{RiskA: 0.35, RiskB: 0.45, RiskC: 0.10, Cash: 0.10},
		Low:           models.WeightVector{RiskA: 0.55, RiskB: 0.25, RiskC: 0.05, Cash: 0.15},
		High:          models.WeightVector{RiskA: 0.15, RiskB: 0.60, RiskC: 0.05, Cash: 0.20},
	}
}

// WithThresholds returns a copy of c with new cut points.
func (c Config) WithThresholds(low, high float64) Config {
	c.LowThreshold = low
	c.HighThreshold = high
	return c
}

// Validate checks threshold ordering and that every bucket row is a
// feasible allocation.
func (c Config) Validate() error {
	if math.IsNaN(c.LowThreshold) || math.IsNaN(c.HighThreshold) || c.LowThreshold >= c.HighThreshold {
		return fmt.Errorf("%w: low threshold %v must be below high threshold %v",
			models.ErrInvalidConfig, c.LowThreshold, c.HighThreshold)
	}
	if c.CashMax < 0 || c.CashMax > 1 {
		return fmt.Errorf("%w: cash ceiling %v out of [0,1]", models.ErrInvalidConfig, c.CashMax)
	}
	templates := map[string]models.WeightVector{"base": c.Base, "low": c.Low, "high": c.High}
	for name, t := range templates {
		for _, a := range models.Assets {
			if v := t.Get(a); math.IsNaN(v) || v < 0 {
				return fmt.Errorf("%w: %s template has %s=%v", models.ErrInvalidConfig, name, a, v)
			}
		}
		if !c.Legacy && t.RiskSum() == 0 {
			return fmt.Errorf("%s template: %w", name, models.ErrDegenerateNormalization)
		}
	}
	return nil
}

// TiltConfig drives the real-yield overlay.
type TiltConfig struct {
	Enabled   bool
	Lookback  int
	Threshold float64
	Step      float64
}

// DefaultTiltConfig returns a four-period lookback with a 0.20 trigger and
// a 10% step.
func DefaultTiltConfig() TiltConfig {
	return TiltConfig{Enabled: true, Lookback: 4, Threshold: 0.20, Step: 0.10}
}

// Validate rejects a non-positive lookback or threshold and a step
// outside [0,1].
func (c TiltConfig) Validate() error {
	if c.Lookback < 1 {
		return fmt.Errorf("%w: tilt lookback %d must be positive", models.ErrInvalidConfig, c.Lookback)
	}
	if c.Threshold <= 0 || c.Step < 0 || c.Step > 1 {
		return fmt.Errorf("%w: tilt threshold %v / step %v", models.ErrInvalidConfig, c.Threshold, c.Step)
	}
	return nil
}
