package di

import (
	"context"
	"fmt"
	"time"

	"MHIRebal/internal/domain/models"
	domrepo "MHIRebal/internal/domain/repository"
	"MHIRebal/internal/handler/api"
	internalrepo "MHIRebal/internal/repository"
	"MHIRebal/internal/scheduler"
	"MHIRebal/internal/services/indicators"
	"MHIRebal/internal/services/policy"
	"MHIRebal/internal/services/simulation"
	"MHIRebal/internal/usecase"
	"MHIRebal/pkg/cache"
	pkgch "MHIRebal/pkg/clickhouse"
	"MHIRebal/pkg/config"
	xhttp "MHIRebal/pkg/http"
	"MHIRebal/pkg/http/middleware"
	pkgkafka "MHIRebal/pkg/kafka"
	applogger "MHIRebal/pkg/logger"
	"MHIRebal/pkg/metrics"
	"MHIRebal/pkg/server"
)

// Feeds holds the data adapters selected by data.source.
type Feeds struct {
	Prices domrepo.PriceFeed
	Macro  domrepo.MacroFeed          // unwrapped; ProvideMacroFeed adds the breaker
	Store  *internalrepo.CHWeeklyFeed // nil for the csv source
}

func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: "mhi-rebal",
	})
}

func ProvideMetrics(cfg *config.Config) domrepo.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New(nil)
}

// ProvideClickHouseClient connects only when ClickHouse is the data source.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if cfg.Data.Source != "clickhouse" {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddr(ch.Host, ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithPool(ch.MaxOpen, ch.MaxIdle, 10*time.Minute),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if ch.InitSchema {
		if err := client.InitSchema(ctx, internalrepo.WeeklySchema(cfg.Data.Table)...); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
	}
	l.Info("clickhouse connected", applogger.String("host", ch.Host), applogger.String("database", ch.Database))
	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

func ProvideFeeds(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) Feeds {
	if cfg.Data.Source == "clickhouse" {
		feed := internalrepo.NewCHWeeklyFeed(ch.DB(), cfg.Data.Table, l)
		return Feeds{Prices: feed, Macro: feed, Store: feed}
	}
	feed := internalrepo.NewCSVFeed(cfg.Data.CSVPath, l)
	return Feeds{Prices: feed, Macro: feed}
}

func ProvidePriceFeed(f Feeds) domrepo.PriceFeed { return f.Prices }

// ProvideMacroFeed returns nil when the macro inputs are disabled.
func ProvideMacroFeed(cfg *config.Config, f Feeds, l *applogger.Logger) domrepo.MacroFeed {
	if !cfg.Macro.Enabled || f.Macro == nil {
		return nil
	}
	return internalrepo.NewBreakerMacroFeed(f.Macro, internalrepo.BreakerConfig{
		Failures: cfg.Macro.BreakerFailures,
		Timeout:  cfg.Macro.BreakerTimeout,
	}, l)
}

// ProvideCache layers an in-process LRU over Redis when Redis is enabled.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	local := cache.WithLayeredMemory(256, time.Hour)
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(256), cache.WithMemoryTTL(cfg.Redis.TTL)), func() {}, nil
	}
	r := cfg.Redis
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(r.Addr),
		cache.WithRedisAuth(r.Password, r.DB),
		cache.WithRedisPoolSize(r.PoolSize),
		cache.WithRedisPrefix(r.Prefix),
		cache.WithRedisTTL(r.TTL),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	cleanup := func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}
	return cache.NewLayeredCache(rc, local), cleanup, nil
}

func ProvideSignalCache(cfg *config.Config, c cache.Service) domrepo.SignalCache {
	return internalrepo.NewSignalStore(c, cfg.Redis.TTL)
}

// ProvidePublisher returns a Kafka publisher, or a no-op one when Kafka is off.
func ProvidePublisher(cfg *config.Config, l *applogger.Logger) (domrepo.EventPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NopPublisher{}, func() {}, nil
	}
	k := cfg.Kafka
	p, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers...),
		pkgkafka.WithClientID("mhi-rebal"),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithMaxAttempts(k.MaxAttempts),
		pkgkafka.WithWriteTimeout(k.WriteTimeout),
		pkgkafka.WithBatching(k.BatchSize, k.BatchTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaEventPublisher(p, internalrepo.Topics{
		Rebalances: k.Topics.Rebalances,
		Decisions:  k.Topics.Decisions,
		Sweeps:     k.Topics.Sweeps,
	}, l)
	cleanup := func() {
		if err := pub.Close(); err != nil {
			l.Warn("kafka close error", applogger.Error(err))
		}
	}
	return pub, cleanup, nil
}

func weights(w config.Weights) models.WeightVector {
	return models.WeightVector{RiskA: w.RiskA, RiskB: w.RiskB, RiskC: w.RiskC, Cash: w.Cash}
}

func ProvideIndicatorEngine(cfg *config.Config, l *applogger.Logger) (*indicators.Engine, error) {
	return indicators.NewEngine(indicators.Config{
		ZWindow:       cfg.Indicators.ZWindow,
		BreadthWindow: cfg.Indicators.BreadthWindow,
		UseCredit:     !cfg.Indicators.NoCredit,
	}, l)
}

// ProvideSettings converts the YAML sections into the immutable policy values.
func ProvideSettings(cfg *config.Config) (usecase.Settings, error) {
	p := cfg.Policy
	pc := policy.Config{
		LowThreshold:  p.LowThreshold,
		HighThreshold: p.HighThreshold,
		CashMax:       p.CashMax,
		Base:          weights(p.Base),
		Low:           weights(p.Low),
		High:          weights(p.High),
		Legacy:        p.Legacy,
	}
	rates, err := policy.CostPreset(policy.PresetStandard)
	if err != nil {
		return usecase.Settings{}, err
	}
	if cfg.Costs.Rates != nil {
		rates = weights(*cfg.Costs.Rates)
	} else if cfg.Costs.Preset != "" {
		if rates, err = policy.CostPreset(cfg.Costs.Preset); err != nil {
			return usecase.Settings{}, err
		}
	}
	s := usecase.Settings{
		Policy: pc,
		Tilt: policy.TiltConfig{
			Enabled:   cfg.Tilt.Enabled,
			Lookback:  cfg.Tilt.Lookback,
			Threshold: cfg.Tilt.Threshold,
			Step:      cfg.Tilt.Step,
		},
		Simulation: simulation.Config{
			Cadence:       cfg.Simulation.Cadence,
			Warmup:        cfg.Simulation.Warmup,
			ConfirmWindow: cfg.Simulation.ConfirmWindow,
			SkipMissing:   cfg.Simulation.SkipMissing,
			Start:         pc.Base,
			CashMax:       pc.CashMax,
		},
		CostRates:    rates,
		MinChange:    cfg.Simulation.MinChange,
		ImpactWindow: cfg.Simulation.ImpactWindow,
	}
	return s, s.Validate()
}

func ProvideDatasetLoader(cfg *config.Config, prices domrepo.PriceFeed, macro domrepo.MacroFeed, sc domrepo.SignalCache,
	engine *indicators.Engine, m domrepo.Metrics, l *applogger.Logger) *usecase.DatasetLoader {
	return usecase.NewDatasetLoader(prices, macro, sc, engine, cfg.StartDate(), m, l)
}

func ProvideAdvisor(data *usecase.DatasetLoader, s usecase.Settings, pub domrepo.EventPublisher, m domrepo.Metrics, l *applogger.Logger) (*usecase.Advisor, error) {
	return usecase.NewAdvisor(data, s, pub, m, l)
}

func ProvideBacktester(data *usecase.DatasetLoader, s usecase.Settings, pub domrepo.EventPublisher, m domrepo.Metrics, l *applogger.Logger) (*usecase.Backtester, error) {
	return usecase.NewBacktester(data, s, pub, m, l)
}

func ProvideSweeper(bt *usecase.Backtester, pub domrepo.EventPublisher, m domrepo.Metrics, l *applogger.Logger) *usecase.Sweeper {
	return usecase.NewSweeper(bt, pub, m, l)
}

func ProvideRebalanceHandler(cfg *config.Config, l *applogger.Logger, adv *usecase.Advisor, bt *usecase.Backtester,
	sw *usecase.Sweeper, ch *pkgch.Client, c cache.Service) *api.RebalanceHandler {
	checks := map[string]api.HealthCheck{}
	if ch != nil {
		checks["clickhouse"] = ch.Health
	}
	if p, ok := c.(interface{ Ping(context.Context) error }); ok {
		checks["redis"] = p.Ping
	}
	return api.NewRebalanceHandler(l, adv, bt, sw, api.Options{
		MaxCells: cfg.Sweep.MaxCells,
		Limiter:  middleware.NewKeyedLimiter(cfg.Sweep.RatePerMinute, cfg.Sweep.Burst),
		Checks:   checks,
	})
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.RebalanceHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideScheduler registers the weekly advise job when scheduling is enabled.
func ProvideScheduler(cfg *config.Config, adv *usecase.Advisor, l *applogger.Logger) (*scheduler.Scheduler, error) {
	if !cfg.Schedule.Enabled {
		return nil, nil
	}
	s := scheduler.New(l)
	job := scheduler.NewAdviseJob(adv, weights(cfg.Schedule.Holdings), cfg.Schedule.Timeout, l)
	if err := s.AddJob(cfg.Schedule.Spec, job); err != nil {
		return nil, err
	}
	return s, nil
}

func ProvideApp(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, sched *scheduler.Scheduler) *server.App {
	return server.New(cfg, l, srv, sched)
}

// Services bundles the use cases the one-shot CLI commands drive.
type Services struct {
	Logger     *applogger.Logger
	Advisor    *usecase.Advisor
	Backtester *usecase.Backtester
	Sweeper    *usecase.Sweeper
}
