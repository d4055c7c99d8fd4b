//go:build wireinject
// +build wireinject

package di

import (
	"AriaPull/pkg/config"
	"AriaPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Metrics
		ProvideRegisterer,
		ProvideGatherer,
		ProvideMetrics,
		ProvideErrorCounter,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories and sinks
		ProvideEventStore,
		ProvideAlertFeed,
		ProvideRetrySink,
		ProvideEventSink,

		// Domain services
		ProvideTrimmer,
		ProvideDetector,

		// Use cases
		ProvidePairConsumer,
		ProvideKafkaPairsHandler,
		ProvideKafkaConsumer,

		// HTTP
		ProvideEventsHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
