package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MHIRebal/internal/domain/models"
	"MHIRebal/internal/usecase"
	"MHIRebal/pkg/http/middleware"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdvisor struct {
	got models.WeightVector
	d   *models.Decision
	err error
}

func (f *fakeAdvisor) Advise(_ context.Context, w models.WeightVector) (*models.Decision, error) {
	f.got = w
	return f.d, f.err
}

type fakeBacktester struct {
	got usecase.BacktestParams
	err error
}

func (f *fakeBacktester) Run(_ context.Context, p usecase.BacktestParams) (*models.SimulationReport, error) {
	f.got = p
	if f.err != nil {
		return nil, f.err
	}
	return &models.SimulationReport{LowThreshold: p.Low, HighThreshold: p.High}, nil
}

// fakeSweeper emits one cell per pair. With block set it emits the first
// cell, then waits for cancellation and reports a partial sweep.
type fakeSweeper struct {
	block bool
	got   usecase.SweepParams
}

func (f *fakeSweeper) Run(ctx context.Context, p usecase.SweepParams, progress chan<- models.SweepCell) (*models.SweepReport, error) {
	f.got = p
	rep := &models.SweepReport{ID: "s1", Total: len(p.Pairs)}
	for i, pair := range p.Pairs {
		c := models.SweepCell{Index: i, Pair: pair, Rebalances: i}
		if progress != nil {
			progress <- c
		}
		rep.Completed++
		rep.BySharpe = append(rep.BySharpe, c)
		if f.block {
			<-ctx.Done()
			rep.Cancelled = true
			return rep, nil
		}
	}
	return rep, nil
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newServer(adv Advisor, bt Backtester, sw Sweeper, opts Options) *echo.Echo {
	e := echo.New()
	NewRebalanceHandler(nil, adv, bt, sw, opts).RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.RemoteAddr = "192.0.2.1:5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestDecisionEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		advErr   error
		wantCode int
		wantErr  string
	}{
		{"ok", "risk_a=0.4&risk_b=0.4&risk_c=0.1", nil, http.StatusOK, ""},
		{"negative holding", "risk_a=-0.1", nil, http.StatusBadRequest, "ERR_GTE"},
		{"holdings above one", "risk_a=0.6&risk_b=0.5", nil, http.StatusBadRequest, "ERR_INVALID_WEIGHTS"},
		{"insufficient history", "risk_a=0.4", fmt.Errorf("decide: %w", models.ErrInsufficientHistory), http.StatusConflict, "ERR_INSUFFICIENT_HISTORY"},
		{"missing prices", "risk_a=0.4", fmt.Errorf("load: %w", models.ErrMissingData), http.StatusUnprocessableEntity, "ERR_MISSING_DATA"},
		{"unexpected", "risk_a=0.4", errors.New("disk on fire"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv := &fakeAdvisor{d: &models.Decision{Bucket: models.BucketNeutral, Status: models.StatusNotConfirmed}, err: tt.advErr}
			e := newServer(adv, &fakeBacktester{}, &fakeSweeper{}, Options{})
			rec, env := do(t, e, http.MethodGet, "/api/decision?"+tt.query, "")
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantErr != "" {
				assert.Contains(t, string(env.Data), tt.wantErr)
				return
			}
			assert.Equal(t, models.WeightVector{RiskA: 0.4, RiskB: 0.4, RiskC: 0.1, Cash: 0.1}.String(), adv.got.String())
			var d models.Decision
			require.NoError(t, json.Unmarshal(env.Data, &d))
			assert.Equal(t, models.BucketNeutral, d.Bucket)
		})
	}
}

func TestBacktestEndpoint(t *testing.T) {
	bt := &fakeBacktester{}
	e := newServer(&fakeAdvisor{}, bt, &fakeSweeper{}, Options{})

	rec, _ := do(t, e, http.MethodPost, "/api/backtest", `{"low":-1.5,"skip_missing":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, usecase.BacktestParams{Low: -1.5, High: 1.75, SkipMissing: true, Analysis: true}, bt.got)

	rec, _ = do(t, e, http.MethodPost, "/api/backtest", `{"low":0.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bt.err = fmt.Errorf("%w: risk sleeve", models.ErrDegenerateNormalization)
	rec, env := do(t, e, http.MethodPost, "/api/backtest", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_POLICY_CONFIG")
}

func TestSweepEndpoint(t *testing.T) {
	sw := &fakeSweeper{}
	e := newServer(&fakeAdvisor{}, &fakeBacktester{}, sw, Options{MaxCells: 4, Limiter: middleware.NewKeyedLimiter(60, 2)})

	rec, env := do(t, e, http.MethodPost, "/api/sweep", `{"lows":[-2,-1.5],"highs":[1.5,2],"workers":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, sw.got.Pairs, 4)
	assert.Equal(t, 2, sw.got.Workers)
	var rep models.SweepReport
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, 4, rep.Completed)

	rec, env = do(t, e, http.MethodPost, "/api/sweep", `{"lows":[-2,-1.5,-1],"highs":[1.5,2]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), "limit is 4")

	rec, _ = do(t, e, http.MethodPost, "/api/sweep", `{"lows":[-2],"highs":[2]}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "burst of 2 is spent")
}

func TestHealthEndpoint(t *testing.T) {
	e := newServer(&fakeAdvisor{}, &fakeBacktester{}, &fakeSweeper{}, Options{Checks: map[string]HealthCheck{
		"clickhouse": func(context.Context) error { return nil },
		"redis":      func(context.Context) error { return errors.New("dial tcp: refused") },
	}})
	rec, env := do(t, e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var h healthReport
	require.NoError(t, json.Unmarshal(env.Data, &h))
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, "ok", h.Checks["clickhouse"])
}

func dialSweep(t *testing.T, sw Sweeper) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(newServer(&fakeAdvisor{}, &fakeBacktester{}, sw, Options{}))
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/sweep", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestSweepStream(t *testing.T) {
	conn := dialSweep(t, &fakeSweeper{})
	require.NoError(t, conn.WriteJSON(models.SweepRequest{Lows: []float64{-2, -1.5}, Highs: []float64{1.5}}))

	var cells int
	for {
		var f wsFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == frameCell {
			cells++
			continue
		}
		require.Equal(t, frameReport, f.Type)
		assert.Equal(t, 2, f.Report.Completed)
		assert.False(t, f.Report.Cancelled)
		break
	}
	assert.Equal(t, 2, cells)
}

func TestSweepStreamAbort(t *testing.T) {
	conn := dialSweep(t, &fakeSweeper{block: true})
	require.NoError(t, conn.WriteJSON(models.SweepRequest{Lows: []float64{-2, -1.5}, Highs: []float64{1.5, 2}}))

	var f wsFrame
	require.NoError(t, conn.ReadJSON(&f))
	require.Equal(t, frameCell, f.Type)
	require.NoError(t, conn.WriteJSON(wsFrame{Type: frameAbort}))

	require.NoError(t, conn.ReadJSON(&f))
	require.Equal(t, frameReport, f.Type)
	assert.True(t, f.Report.Cancelled)
	assert.Equal(t, 1, f.Report.Completed)
}

func TestSweepStreamRejectsBadRequest(t *testing.T) {
	conn := dialSweep(t, &fakeSweeper{})
	require.NoError(t, conn.WriteJSON(map[string]any{"lows": []float64{1}}))

	var f wsFrame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, frameError, f.Type)
	assert.NotNil(t, f.Errors)
}
