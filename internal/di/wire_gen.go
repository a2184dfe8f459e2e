//go:build !wireinject
// +build !wireinject

// Injectors for the provider sets in wire.go, kept in the shape the wire
// generator emits. Regenerate with `go generate ./internal/di` after
// changing a provider signature; this file is maintained by hand until then.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire

package di

import (
	"MHIRebal/pkg/config"
	"MHIRebal/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires the long-running server: HTTP API plus the weekly job.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	client, cleanup, err := ProvideClickHouseClient(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	feeds := ProvideFeeds(cfg, client, logger)
	priceFeed := ProvidePriceFeed(feeds)
	macroFeed := ProvideMacroFeed(cfg, feeds, logger)
	service, cleanup2, err := ProvideCache(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	signalCache := ProvideSignalCache(cfg, service)
	engine, err := ProvideIndicatorEngine(cfg, logger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	metrics := ProvideMetrics(cfg)
	datasetLoader := ProvideDatasetLoader(cfg, priceFeed, macroFeed, signalCache, engine, metrics, logger)
	settings, err := ProvideSettings(cfg)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	eventPublisher, cleanup3, err := ProvidePublisher(cfg, logger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	advisor, err := ProvideAdvisor(datasetLoader, settings, eventPublisher, metrics, logger)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	backtester, err := ProvideBacktester(datasetLoader, settings, eventPublisher, metrics, logger)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	sweeper := ProvideSweeper(backtester, eventPublisher, metrics, logger)
	rebalanceHandler := ProvideRebalanceHandler(cfg, logger, advisor, backtester, sweeper, client, service)
	httpServer := ProvideHTTPServer(cfg, logger, rebalanceHandler)
	schedulerScheduler, err := ProvideScheduler(cfg, advisor, logger)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	app := ProvideApp(cfg, logger, httpServer, schedulerScheduler)
	return app, func() {
		cleanup3()
		cleanup2()
		cleanup()
	}, nil
}

// InitializeServices wires the use cases for one-shot CLI commands.
func InitializeServices(cfg *config.Config) (*Services, func(), error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	client, cleanup, err := ProvideClickHouseClient(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	feeds := ProvideFeeds(cfg, client, logger)
	priceFeed := ProvidePriceFeed(feeds)
	macroFeed := ProvideMacroFeed(cfg, feeds, logger)
	service, cleanup2, err := ProvideCache(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	signalCache := ProvideSignalCache(cfg, service)
	engine, err := ProvideIndicatorEngine(cfg, logger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	metrics := ProvideMetrics(cfg)
	datasetLoader := ProvideDatasetLoader(cfg, priceFeed, macroFeed, signalCache, engine, metrics, logger)
	settings, err := ProvideSettings(cfg)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	eventPublisher, cleanup3, err := ProvidePublisher(cfg, logger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	advisor, err := ProvideAdvisor(datasetLoader, settings, eventPublisher, metrics, logger)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	backtester, err := ProvideBacktester(datasetLoader, settings, eventPublisher, metrics, logger)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	sweeper := ProvideSweeper(backtester, eventPublisher, metrics, logger)
	services := &Services{
		Logger:     logger,
		Advisor:    advisor,
		Backtester: backtester,
		Sweeper:    sweeper,
	}
	return services, func() {
		cleanup3()
		cleanup2()
		cleanup()
	}, nil
}
