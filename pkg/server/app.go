package server

import (
	"context"
	"os/signal"
	"syscall"

	"MHIRebal/internal/scheduler"
	"MHIRebal/pkg/config"
	xhttp "MHIRebal/pkg/http"
	applogger "MHIRebal/pkg/logger"
)

// App owns the long-running pieces of the serve command.
type App struct {
	cfg   *config.Config
	l     *applogger.Logger
	http  *xhttp.Server
	sched *scheduler.Scheduler // nil when schedule.enabled is false
}

func New(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, sched *scheduler.Scheduler) *App {
	return &App{cfg: cfg, l: l.Component("app"), http: srv, sched: sched}
}

// Run starts the server and the scheduler and blocks until ctx is cancelled,
// SIGINT/SIGTERM arrives or the listener fails.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := a.http.Start()
	if a.sched != nil {
		a.sched.Start()
	}
	a.l.Info("app started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("source", a.cfg.Data.Source),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Bool("schedule", a.sched != nil),
		applogger.Bool("kafka", a.cfg.Kafka.Enabled),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case err, ok := <-errCh:
		if ok {
			runErr = err
		}
	}
	a.shutdown()
	return runErr
}

func (a *App) shutdown() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if err := a.http.Stop(context.Background()); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	a.l.Info("shutdown complete")
}
