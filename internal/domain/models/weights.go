package models

import (
	"fmt"
	"math"
)

// Asset identifies one of the four portfolio sleeves.
type Asset string

const (
	RiskA Asset = "RISK_A" // equity
	RiskB Asset = "RISK_B" // gold
	RiskC Asset = "RISK_C" // crypto
	Cash  Asset = "CASH"
)

// Assets lists the sleeves in their canonical order.
var Assets = []Asset{RiskA, RiskB, RiskC, Cash}

// RiskAssets lists the sleeves that carry price risk.
var RiskAssets = []Asset{RiskA, RiskB, RiskC}

// WeightTolerance is the allowed deviation of a weight vector sum from 1.
const WeightTolerance = 1e-9

// WeightVector is a fixed-shape allocation across the four sleeves.
// Values are replaced wholesale; methods never mutate the receiver.
type WeightVector struct {
	RiskA float64 `json:"risk_a" yaml:"risk_a"`
	RiskB float64 `json:"risk_b" yaml:"risk_b"`
	RiskC float64 `json:"risk_c" yaml:"risk_c"`
	Cash  float64 `json:"cash" yaml:"cash"`
}

// Get returns the weight of one sleeve.
func (w WeightVector) Get(a Asset) float64 {
	switch a {
	case RiskA:
		return w.RiskA
	case RiskB:
		return w.RiskB
	case RiskC:
		return w.RiskC
	case Cash:
		return w.Cash
	}
	return 0
}

// With returns a copy of w with sleeve a set to v.
func (w WeightVector) With(a Asset, v float64) WeightVector {
	switch a {
	case RiskA:
		w.RiskA = v
	case RiskB:
		w.RiskB = v
	case RiskC:
		w.RiskC = v
	case Cash:
		w.Cash = v
	}
	return w
}

// Sum returns the total of all four sleeves.
func (w WeightVector) Sum() float64 {
	return w.RiskA + w.RiskB + w.RiskC + w.Cash
}

// RiskSum returns the total of the three risk sleeves.
func (w WeightVector) RiskSum() float64 {
	return w.RiskA + w.RiskB + w.RiskC
}

// Sub returns the per-sleeve difference w - other.
func (w WeightVector) Sub(other WeightVector) WeightVector {
	return WeightVector{
		RiskA: w.RiskA - other.RiskA,
		RiskB: w.RiskB - other.RiskB,
		RiskC: w.RiskC - other.RiskC,
		Cash:  w.Cash - other.Cash,
	}
}

// Turnover is the L1 distance between two allocations.
func (w WeightVector) Turnover(other WeightVector) float64 {
	d := w.Sub(other)
	return math.Abs(d.RiskA) + math.Abs(d.RiskB) + math.Abs(d.RiskC) + math.Abs(d.Cash)
}

// Dot returns the portfolio return for per-sleeve returns r.
func (w WeightVector) Dot(r WeightVector) float64 {
	return w.RiskA*r.RiskA + w.RiskB*r.RiskB + w.RiskC*r.RiskC + w.Cash*r.Cash
}

// Equal reports exact equality of all sleeves.
func (w WeightVector) Equal(other WeightVector) bool {
	return w == other
}

// Validate enforces non-negative weights summing to one with cash under cashMax.
func (w WeightVector) Validate(cashMax float64) error {
	for _, a := range Assets {
		v := w.Get(a)
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: %s=%v out of [0,1]", ErrInvalidWeights, a, v)
		}
	}
	if s := w.Sum(); math.Abs(s-1) > WeightTolerance {
		return fmt.Errorf("%w: sum=%v", ErrInvalidWeights, s)
	}
	if w.Cash > cashMax+WeightTolerance {
		return fmt.Errorf("%w: cash %v above ceiling %v", ErrInvalidWeights, w.Cash, cashMax)
	}
	return nil
}

// FromHoldings builds a vector from risk holdings, assigning the remainder to cash.
func FromHoldings(riskA, riskB, riskC float64) (WeightVector, error) {
	w := WeightVector{RiskA: riskA, RiskB: riskB, RiskC: riskC}
	for _, a := range RiskAssets {
		if v := w.Get(a); math.IsNaN(v) || v < 0 {
			return WeightVector{}, fmt.Errorf("%w: %s=%v is negative", ErrInvalidWeights, a, v)
		}
	}
	rs := w.RiskSum()
	if rs > 1+WeightTolerance {
		return WeightVector{}, fmt.Errorf("%w: holdings sum %v above 1", ErrInvalidWeights, rs)
	}
	w.Cash = math.Max(0, 1-rs)
	return w, nil
}

func (w WeightVector) String() string {
	return fmt.Sprintf("{A:%.4f B:%.4f C:%.4f CASH:%.4f}", w.RiskA, w.RiskB, w.RiskC, w.Cash)
}
