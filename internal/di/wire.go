//go:build wireinject
// +build wireinject

package di

import (
	"RateCast/pkg/config"
	"RateCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideRateStore,
		ProvideRateHistory,
		ProvideRateSink,
		ProvideRatePublisher,
		ProvideEventPublisher,
		ProvideFSStore,
		ProvideCatalogStore,
		ProvideArtifactStore,
		ProvideRateStream,

		// Model lifecycle
		ProvideRegistry,
		ProvideForecastService,

		// Ingestion
		ProvideRateProcessor,
		ProvideRateCollector,
		ProvideKafkaRatesHandler,

		// HTTP surface
		ProvideCache,
		ProvideLimiter,
		ProvideForecastHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
