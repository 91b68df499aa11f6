//go:build wireinject
// +build wireinject

package di

import (
	"TrendPulse/pkg/config"
	"TrendPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideGateway,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideSnapshotCache,

		// Repositories
		ProvideStorage,
		ProvidePublisher,
		ProvideMarketStream,
		ProvideRestClient,

		// Delivery
		ProvideNotifier,

		// Use cases
		ProvideProcessor,
		ProvideCollector,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
