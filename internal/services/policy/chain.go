package policy

import (
	"time"

	"MHIRebal/internal/domain/models"
)

// Candidate is the output of the policy chain for one check point.
type Candidate struct {
	Bucket models.Bucket
	Target models.WeightVector
	Tilted bool
}

// Chain runs WeightPolicy followed by the optional tilt overlay.
type Chain struct {
	Weights *WeightPolicy
	Tilt    *TiltAdjuster
}

// NewChain composes the weight policy with an optional tilt.
func NewChain(w *WeightPolicy, t *TiltAdjuster) *Chain {
	return &Chain{Weights: w, Tilt: t}
}

// Candidate classifies signal and returns the tilted target for date.
func (c *Chain) Candidate(signal float64, date time.Time) (Candidate, error) {
	b, target, err := c.Weights.Target(signal)
	if err != nil {
		return Candidate{Bucket: b}, err
	}
	tilted := false
	if c.Tilt != nil {
		target, tilted, err = c.Tilt.Apply(target, date)
		if err != nil {
			return Candidate{Bucket: b}, err
		}
	}
	return Candidate{Bucket: b, Target: target, Tilted: tilted}, nil
}
