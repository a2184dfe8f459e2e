package models

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightVectorValidate(t *testing.T) {
	tests := []struct {
		name    string
		w       WeightVector
		wantErr bool
	}{
		{"base", WeightVector{0.35, 0.45, 0.10, 0.10}, false},
		{"sum below one", WeightVector{0.3, 0.3, 0.1, 0.1}, true},
		{"negative", WeightVector{-0.1, 0.6, 0.4, 0.1}, true},
		{"cash above ceiling", WeightVector{0.2, 0.2, 0.1, 0.5}, true},
		{"nan", WeightVector{math.NaN(), 0.5, 0.4, 0.1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate(0.35)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidWeights))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestWeightVectorTurnoverAndDot(t *testing.T) {
	a := WeightVector{RiskA: 1}
	b := WeightVector{RiskB: 1}
	assert.InDelta(t, 2.0, a.Turnover(b), 1e-12)
	assert.Zero(t, a.Turnover(a))

	w := WeightVector{0.5, 0.3, 0.1, 0.1}
	r := WeightVector{RiskA: 0.02, RiskB: -0.01, RiskC: 0.10}
	assert.InDelta(t, 0.01-0.003+0.01, w.Dot(r), 1e-12)
}

func TestWeightVectorWithDoesNotMutate(t *testing.T) {
	w := WeightVector{0.35, 0.45, 0.10, 0.10}
	w2 := w.With(RiskA, 0.9)
	assert.Equal(t, 0.35, w.RiskA)
	assert.Equal(t, 0.9, w2.RiskA)
}

func TestFromHoldings(t *testing.T) {
	w, err := FromHoldings(0.4, 0.4, 0.1)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, w.Cash, 1e-12)

	_, err = FromHoldings(0.6, 0.5, 0)
	assert.ErrorIs(t, err, ErrInvalidWeights)

	_, err = FromHoldings(-0.1, 0.5, 0)
	assert.ErrorIs(t, err, ErrInvalidWeights)
}

func TestPriceFrameReturns(t *testing.T) {
	d0 := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	f := &PriceFrame{
		Dates:      []time.Time{d0, d0.AddDate(0, 0, 7), d0.AddDate(0, 0, 14)},
		RiskA:      []float64{100, 110, 99},
		RiskB:      []float64{50, 50, 55},
		RiskC:      []float64{10, math.NaN(), 12},
		Volatility: []float64{20, 21, 22},
	}
	require.NoError(t, f.Validate())

	_, err := f.Returns(1)
	assert.ErrorIs(t, err, ErrMissingData)

	f.RiskC[1] = 8
	r, err := f.Returns(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.10, r.RiskA, 1e-12)
	assert.InDelta(t, 0.0, r.RiskB, 1e-12)
	assert.InDelta(t, -0.2, r.RiskC, 1e-12)
	assert.Zero(t, r.Cash)
}

func TestPriceFrameValidateRejectsUnorderedDates(t *testing.T) {
	d0 := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	f := &PriceFrame{
		Dates:      []time.Time{d0, d0},
		RiskA:      []float64{1, 1},
		RiskB:      []float64{1, 1},
		RiskC:      []float64{1, 1},
		Volatility: []float64{1, 1},
	}
	assert.Error(t, f.Validate())
}

func TestSeriesAlign(t *testing.T) {
	d0 := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	s, err := NewSeries("ry", []time.Time{d0, d0.AddDate(0, 0, 14)}, []float64{1.5, 1.7})
	require.NoError(t, err)

	a := s.Align([]time.Time{d0, d0.AddDate(0, 0, 7), d0.AddDate(0, 0, 14)})
	require.Equal(t, 3, a.Len())
	assert.Equal(t, 1.5, a.Values[0])
	assert.True(t, math.IsNaN(a.Values[1]))
	assert.Equal(t, 1.7, a.Values[2])
	assert.Equal(t, 2, a.DefinedCount())
}
