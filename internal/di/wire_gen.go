// Injector for wire.go in the form wire emits it. Run go generate in this
// package to replace it with wire's own output.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"AriaPull/pkg/config"
	"AriaPull/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	registerer := ProvideRegisterer()
	gatherer := ProvideGatherer()
	metrics := ProvideMetrics(registerer)
	errorCounter, err := ProvideErrorCounter(registerer)
	if err != nil {
		return nil, err
	}
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	logger, err := ProvideLogger(cfg, producer)
	if err != nil {
		return nil, err
	}
	client, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	service, err := ProvideCache(cfg)
	if err != nil {
		return nil, err
	}
	eventStore, err := ProvideEventStore(cfg, client, service, logger)
	if err != nil {
		return nil, err
	}
	hub := ProvideAlertFeed(cfg, logger)
	retrySink, err := ProvideRetrySink(cfg, producer, metrics, logger)
	if err != nil {
		return nil, err
	}
	eventSink, err := ProvideEventSink(cfg, producer, retrySink, eventStore, hub, service, logger)
	if err != nil {
		return nil, err
	}
	trimmer, err := ProvideTrimmer(cfg, errorCounter, metrics, logger)
	if err != nil {
		return nil, err
	}
	detector, err := ProvideDetector(cfg, trimmer, logger)
	if err != nil {
		return nil, err
	}
	pairConsumer, err := ProvidePairConsumer(detector, eventSink, errorCounter, metrics, logger)
	if err != nil {
		return nil, err
	}
	kafkaPairsHandler := ProvideKafkaPairsHandler(cfg, pairConsumer, logger)
	consumer, err := ProvideKafkaConsumer(cfg, registerer, logger)
	if err != nil {
		return nil, err
	}
	eventsEchoHandler := ProvideEventsHandler(cfg, logger, pairConsumer, trimmer, detector, eventStore, hub, service)
	httpServer := ProvideHTTPServer(cfg, eventsEchoHandler, registerer, gatherer, logger)
	app := ProvideApp(cfg, logger, consumer, kafkaPairsHandler, httpServer, hub, retrySink, producer, client, service)
	return app, nil
}
