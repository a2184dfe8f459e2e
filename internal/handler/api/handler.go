package api

import (
	"context"
	"net/http"
	"time"

	"MHIRebal/internal/domain/models"
	"MHIRebal/internal/usecase"
	xhttp "MHIRebal/pkg/http"
	"MHIRebal/pkg/http/middleware"
	xlogger "MHIRebal/pkg/logger"

	"github.com/labstack/echo/v4"
)

type Advisor interface {
	Advise(ctx context.Context, current models.WeightVector) (*models.Decision, error)
}

type Backtester interface {
	Run(ctx context.Context, p usecase.BacktestParams) (*models.SimulationReport, error)
}

type Sweeper interface {
	Run(ctx context.Context, p usecase.SweepParams, progress chan<- models.SweepCell) (*models.SweepReport, error)
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Options bounds the sweep endpoints and lists the health probes.
type Options struct {
	MaxCells int
	Limiter  *middleware.KeyedLimiter
	Checks   map[string]HealthCheck
}

// RebalanceHandler serves decisions, backtests and sweeps over echo.
type RebalanceHandler struct {
	logger  *xlogger.Logger
	advisor Advisor
	bt      Backtester
	sweeper Sweeper
	opts    Options
}

func NewRebalanceHandler(logger *xlogger.Logger, advisor Advisor, bt Backtester, sweeper Sweeper, opts Options) *RebalanceHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if opts.MaxCells <= 0 {
		opts.MaxCells = 400
	}
	return &RebalanceHandler{logger: logger.Component("api"), advisor: advisor, bt: bt, sweeper: sweeper, opts: opts}
}

func (h *RebalanceHandler) RegisterRoutes(e *echo.Echo) {
	var limited []echo.MiddlewareFunc
	if h.opts.Limiter != nil {
		limited = append(limited, middleware.RateLimit(h.opts.Limiter))
	}
	g := e.Group("/api")
	g.GET("/decision", h.Decision)
	g.POST("/backtest", h.Backtest)
	g.POST("/sweep", h.Sweep, limited...)
	e.GET("/ws/sweep", h.SweepStream, limited...)
	e.GET("/healthz", h.Health)
}

// Decision answers GET /api/decision?risk_a=&risk_b=&risk_c= for the latest week.
func (h *RebalanceHandler) Decision(c echo.Context) error {
	req := &models.DecisionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	current, err := models.FromHoldings(req.RiskA, req.RiskB, req.RiskC)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	d, err := h.advisor.Advise(c.Request().Context(), current)
	if err != nil {
		h.logger.Warn("decision failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, d)
}

func (h *RebalanceHandler) Backtest(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rep, err := h.bt.Run(c.Request().Context(), usecase.BacktestParams{
		Low:         req.Low,
		High:        req.High,
		SkipMissing: req.SkipMissing,
		CostPreset:  req.CostPreset,
		Analysis:    !req.NoAnalysis,
	})
	if err != nil {
		h.logger.Error("backtest failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, rep)
}

// Sweep runs the whole grid and answers once. Use /ws/sweep to follow progress.
func (h *RebalanceHandler) Sweep(c echo.Context) error {
	req := &models.SweepRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	params, appErr := h.sweepParams(req)
	if appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}
	rep, err := h.sweeper.Run(c.Request().Context(), params, nil)
	if err != nil {
		h.logger.Error("sweep failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, rep)
}

func (h *RebalanceHandler) sweepParams(req *models.SweepRequest) (usecase.SweepParams, *xhttp.AppError) {
	pairs := req.Pairs()
	if len(pairs) > h.opts.MaxCells {
		return usecase.SweepParams{}, xhttp.BadRequestErrorf("grid has %d cells, limit is %d", len(pairs), h.opts.MaxCells).
			WithParam("max_cells", h.opts.MaxCells)
	}
	return usecase.SweepParams{
		Pairs:       pairs,
		Workers:     req.Workers,
		CostPreset:  req.CostPreset,
		SkipMissing: req.SkipMissing,
		Top:         req.Top,
	}, nil
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *RebalanceHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	rep := healthReport{Status: "ok", Checks: map[string]string{}}
	code := http.StatusOK
	for name, check := range h.opts.Checks {
		if err := check(ctx); err != nil {
			rep.Checks[name] = err.Error()
			rep.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		rep.Checks[name] = "ok"
	}
	return xhttp.DataResponse(c, code, rep)
}
