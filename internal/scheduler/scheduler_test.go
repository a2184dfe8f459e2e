package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"MHIRebal/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdvisor struct {
	calls    int
	holdings models.WeightVector
	deadline bool
	err      error
}

func (s *stubAdvisor) Advise(ctx context.Context, w models.WeightVector) (*models.Decision, error) {
	s.calls++
	s.holdings = w
	_, s.deadline = ctx.Deadline()
	if s.err != nil {
		return nil, s.err
	}
	return &models.Decision{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Bucket: models.BucketLow, Confirmed: true}, nil
}

func TestAdviseJob(t *testing.T) {
	base := models.WeightVector{RiskA: 0.35, RiskB: 0.45, RiskC: 0.10, Cash: 0.10}
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"decision", nil, false},
		{"short history is not a failure", fmt.Errorf("advise: %w", models.ErrInsufficientHistory), false},
		{"feed error", errors.New("clickhouse down"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv := &stubAdvisor{err: tt.err}
			job := NewAdviseJob(adv, base, time.Minute, nil)
			err := New(nil).RunNow(job)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 1, adv.calls)
			assert.Equal(t, base, adv.holdings)
			assert.True(t, adv.deadline)
		})
	}
}

func TestAddJobRejectsBadSpec(t *testing.T) {
	s := New(nil)
	err := s.AddJob("every friday", NewAdviseJob(&stubAdvisor{}, models.WeightVector{}, 0, nil))
	assert.Error(t, err)
	require.NoError(t, s.AddJob("0 0 18 * * FRI", NewAdviseJob(&stubAdvisor{}, models.WeightVector{}, 0, nil)))
	s.Start()
	s.Stop()
}
