package scheduler

import (
	"context"
	"fmt"
	"time"

	applogger "MHIRebal/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Job is a unit of scheduled work.
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler runs jobs on six-field cron specs (seconds first).
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	stop context.CancelFunc
	l    *applogger.Logger
}

func New(l *applogger.Logger) *Scheduler {
	if l == nil {
		l = applogger.Nop()
	}
	l = l.Component("scheduler")
	ctx, stop := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger{l}), cron.SkipIfStillRunning(cronLogger{l})),
		),
		ctx:  ctx,
		stop: stop,
		l:    l,
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler started", applogger.Int("jobs", len(s.cron.Entries())))
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.stop()
	<-s.cron.Stop().Done()
	s.l.Info("scheduler stopped")
}

// AddJob registers job under spec, e.g. "0 0 18 * * FRI".
func (s *Scheduler) AddJob(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.RunNow(job); err != nil {
			s.l.Error("job failed", applogger.String("job", job.Name()), applogger.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", job.Name(), spec, err)
	}
	s.l.Info("job registered", applogger.String("job", job.Name()), applogger.String("spec", spec))
	return nil
}

// RunNow executes job outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	began := time.Now()
	s.l.Debug("running job", applogger.String("job", job.Name()))
	err := job.Run(s.ctx)
	s.l.Debug("job returned", applogger.String("job", job.Name()), applogger.Duration("took", time.Since(began)))
	return err
}

// cronLogger feeds cron's internal messages into the application logger.
type cronLogger struct{ l *applogger.Logger }

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug(msg, applogger.Any("details", kv))
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error(msg, applogger.Error(err), applogger.Any("details", kv))
}
