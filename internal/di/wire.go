//go:build wireinject
// +build wireinject

package di

import (
	"MHIRebal/pkg/config"
	"MHIRebal/pkg/server"

	"github.com/google/wire"
)

var dataSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideFeeds,
	ProvidePriceFeed,
	ProvideMacroFeed,
	ProvideCache,
	ProvideSignalCache,
	ProvidePublisher,
	ProvideIndicatorEngine,
	ProvideSettings,
	ProvideDatasetLoader,
)

var useCaseSet = wire.NewSet(
	ProvideAdvisor,
	ProvideBacktester,
	ProvideSweeper,
)

// InitializeApp wires the long-running server: HTTP API plus the weekly job.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		dataSet,
		useCaseSet,
		ProvideRebalanceHandler,
		ProvideHTTPServer,
		ProvideScheduler,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeServices wires the use cases for one-shot CLI commands.
func InitializeServices(cfg *config.Config) (*Services, func(), error) {
	wire.Build(
		dataSet,
		useCaseSet,
		wire.Struct(new(Services), "*"),
	)
	return nil, nil, nil
}
