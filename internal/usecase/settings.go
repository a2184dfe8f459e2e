package usecase

import (
	"fmt"

	"MHIRebal/internal/domain/models"
	"MHIRebal/internal/services/policy"
	"MHIRebal/internal/services/simulation"
)

// DefaultMinChange is the smallest per-sleeve move a decision reports.
const DefaultMinChange = 0.08

// Settings groups the policy knobs shared by the decision, backtest and sweep flows.
type Settings struct {
	Policy       policy.Config
	Tilt         policy.TiltConfig
	Simulation   simulation.Config
	CostRates    models.WeightVector
	MinChange    float64
	ImpactWindow int
}

func DefaultSettings() Settings {
	rates, _ := policy.CostPreset(policy.PresetStandard)
	return Settings{
		Policy:       policy.DefaultConfig(),
		Tilt:         policy.DefaultTiltConfig(),
		Simulation:   simulation.DefaultConfig(),
		CostRates:    rates,
		MinChange:    DefaultMinChange,
		ImpactWindow: simulation.DefaultImpactWindow,
	}
}

func (s Settings) Validate() error {
	if err := s.Policy.Validate(); err != nil {
		return err
	}
	if err := s.Tilt.Validate(); err != nil {
		return err
	}
	if err := s.Simulation.Validate(); err != nil {
		return err
	}
	if s.MinChange < 0 || s.MinChange >= 1 {
		return fmt.Errorf("%w: min change %v out of [0,1)", models.ErrInvalidConfig, s.MinChange)
	}
	return nil
}

// chain builds the policy chain for cfg. The tilt overlay is attached only when
// real-yield data is present.
func (s Settings) chain(cfg policy.Config, realYield *models.Series) (*policy.Chain, error) {
	wp, err := policy.NewWeightPolicy(cfg)
	if err != nil {
		return nil, err
	}
	var tilt *policy.TiltAdjuster
	if s.Tilt.Enabled && realYield != nil {
		tilt, err = policy.NewTiltAdjuster(s.Tilt, realYield, wp)
		if err != nil {
			return nil, err
		}
	}
	return policy.NewChain(wp, tilt), nil
}

// CostRatesFor resolves a named preset. An empty name means the configured rates.
func (s Settings) CostRatesFor(preset string) (models.WeightVector, error) {
	if preset == "" {
		return s.CostRates, nil
	}
	return policy.CostPreset(preset)
}
