package scheduler

import (
	"context"
	"errors"
	"time"

	"MHIRebal/internal/domain/models"
	applogger "MHIRebal/pkg/logger"
)

type Advisor interface {
	Advise(ctx context.Context, current models.WeightVector) (*models.Decision, error)
}

// AdviseJob recomputes the weekly decision for a configured holding.
// Publication happens inside the advisor.
type AdviseJob struct {
	advisor  Advisor
	holdings models.WeightVector
	timeout  time.Duration
	l        *applogger.Logger
}

func NewAdviseJob(advisor Advisor, holdings models.WeightVector, timeout time.Duration, l *applogger.Logger) *AdviseJob {
	if l == nil {
		l = applogger.Nop()
	}
	return &AdviseJob{advisor: advisor, holdings: holdings, timeout: timeout, l: l.Component("advise_job")}
}

func (j *AdviseJob) Name() string { return "weekly_advise" }

func (j *AdviseJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	d, err := j.advisor.Advise(ctx, j.holdings)
	if errors.Is(err, models.ErrInsufficientHistory) {
		j.l.Warn("weekly decision skipped", applogger.Error(err))
		return nil
	}
	if err != nil {
		return err
	}
	j.l.Info("weekly decision",
		applogger.Time("week", d.Date),
		applogger.String("bucket", string(d.Bucket)),
		applogger.Bool("actionable", d.Actionable()),
		applogger.String("delta", d.Delta.String()),
	)
	return nil
}
