package di

import (
	"context"
	"fmt"
	"time"

	"AriaPull/internal/domain/models"
	"AriaPull/internal/domain/repository"
	"AriaPull/internal/domain/service"
	"AriaPull/internal/handler/api"
	mid "AriaPull/internal/middleware"
	internalrepo "AriaPull/internal/repository"
	"AriaPull/internal/service/alertfeed"
	"AriaPull/internal/service/ratelimit"
	"AriaPull/internal/services/detection"
	"AriaPull/internal/services/smoothing"
	"AriaPull/internal/usecase"
	"AriaPull/pkg/cache"
	pkgch "AriaPull/pkg/clickhouse"
	"AriaPull/pkg/config"
	xhttp "AriaPull/pkg/http"
	pkgkafka "AriaPull/pkg/kafka"
	applogger "AriaPull/pkg/logger"
	"AriaPull/pkg/metrics"
	"AriaPull/pkg/server"
	"AriaPull/pkg/units"

	"github.com/prometheus/client_golang/prometheus"
)

// Detector is the detector the pipeline runs on radar tracks.
type Detector = service.Detector[models.RadarHit]

// PairConsumer is the pipeline instantiated with radar hits.
type PairConsumer = usecase.PairConsumer[models.RadarHit]

// Trimmer is the boundary trimmer instantiated with radar hits.
type Trimmer = smoothing.Trimmer[models.RadarHit]

// ProvideRegisterer returns the process-wide Prometheus registerer. The
// Kafka producer metrics live there too.
func ProvideRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

// ProvideGatherer returns the registry served on /metrics.
func ProvideGatherer() prometheus.Gatherer {
	return prometheus.DefaultGatherer
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithAutoCreateTopics(cfg.Environment == "development"),
		pkgkafka.WithHeader("source", "ariapull"),
		pkgkafka.WithHeader("env", cfg.Environment),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideLogger builds the application logger. When the collector is on,
// aggregated error records go to the diagnostics topic through the producer.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	if cfg.Logging.Collector.Enabled {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collector.Interval,
			CountThreshold: cfg.Logging.Collector.Threshold,
			Topic:          cfg.Logging.Collector.Topic,
			Publisher:      internalrepo.NewKafkaLogPublisher(producer),
		})
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates the Prometheus recorder for the pipeline.
func ProvideMetrics(reg prometheus.Registerer) repository.Metrics {
	return metrics.NewWithRegisterer(reg)
}

// ProvideErrorCounter creates the shared failure counter and exposes it.
func ProvideErrorCounter(reg prometheus.Registerer) (*metrics.ErrorCounter, error) {
	errs := metrics.NewErrorCounter()
	if err := errs.Register(reg); err != nil {
		return nil, fmt.Errorf("register error counter: %w", err)
	}
	return errs, nil
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithCompression(cfg.ClickHouse.Compression),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideEventStore creates the ClickHouse event table, or nil when
// ClickHouse is disabled. Recent reads go through the cache when enabled.
func ProvideEventStore(cfg *config.Config, ch *pkgch.Client, c cache.Service, log *applogger.Logger) (repository.EventStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseEventStore(ch, cfg.ClickHouse.EventsTable)
	store.SetLogger(log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("event store: %w", err)
	}

	if !cfg.ClickHouse.RecentCache.Enabled {
		return store, nil
	}
	cached, err := internalrepo.NewCachedEventStore(store, c, cfg.ClickHouse.RecentCache.TTL)
	if err != nil {
		return nil, err
	}
	cached.SetLogger(log.With(applogger.String("component", "event_store")))
	return cached, nil
}

// ProvideCache creates the dedup cache: Redis when enabled, memory otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.KeyPrefix),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdle, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideTrimmer creates the boundary trimmer from the cleaning section.
func ProvideTrimmer(
	cfg *config.Config,
	errs *metrics.ErrorCounter,
	m repository.Metrics,
	log *applogger.Logger,
) (*Trimmer, error) {
	t, err := smoothing.NewTrimmer[models.RadarHit](smoothing.Config{
		SpeedLimit:              units.Knots(cfg.Cleaning.SpeedLimitKnots),
		GroundAltitudeTolerance: units.Feet(cfg.Cleaning.GroundAltitudeToleranceFt),
		MinPoints:               cfg.Cleaning.MinPoints,
	}, errs)
	if err != nil {
		return nil, err
	}
	t.SetLogger(log.With(applogger.String("component", "trimmer")))
	t.SetMetrics(m)
	return t, nil
}

// ProvideDetector picks the local proximity detector or the remote service.
func ProvideDetector(cfg *config.Config, trimmer *Trimmer, log *applogger.Logger) (Detector, error) {
	switch cfg.Detection.Mode {
	case "remote":
		d, err := detection.NewHTTPDetector(cfg.Detection.RemoteURL, cfg.Detection.RemoteTimeout, cfg.Detection.RemoteAttempts)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		d, err := detection.NewProximityDetector(detection.ProximityConfig{
			LateralThreshold:  units.NauticalMiles(cfg.Detection.LateralThresholdNM),
			VerticalThreshold: units.Feet(cfg.Detection.VerticalThresholdFt),
			MaxTimeGap:        cfg.Detection.MaxTimeGap,
			Facility:          cfg.Detection.Facility,
		}, trimmer)
		if err != nil {
			return nil, err
		}
		d.SetLogger(log.With(applogger.String("component", "detector")))
		return d, nil
	}
}

// ProvideAlertFeed creates the websocket hub when it is a configured sink.
func ProvideAlertFeed(cfg *config.Config, log *applogger.Logger) *alertfeed.Hub {
	if !cfg.HasSink("alertfeed") {
		return nil
	}
	return alertfeed.NewHub(alertfeed.WithLogger(log.With(applogger.String("component", "alertfeed"))))
}

// ProvideRetrySink buffers events the Kafka publisher rejects and
// redelivers them. Nil when kafka is not a sink or retry is off.
func ProvideRetrySink(
	cfg *config.Config,
	producer *pkgkafka.Producer,
	m repository.Metrics,
	log *applogger.Logger,
) (*mid.RetrySink, error) {
	if !cfg.HasSink("kafka") || !cfg.Output.Retry.Enabled {
		return nil, nil
	}
	return mid.NewRetrySink(
		internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic), m,
		mid.WithBufferSize(cfg.Output.Retry.BufferSize),
		mid.WithBackoff(cfg.Output.Retry.BackoffMin, cfg.Output.Retry.BackoffMax),
		mid.WithLogger(log.With(applogger.String("component", "retry_sink"))),
	)
}

// ProvideEventSink fans events out to the configured sinks, behind the
// dedup filter when it is enabled.
func ProvideEventSink(
	cfg *config.Config,
	producer *pkgkafka.Producer,
	retry *mid.RetrySink,
	store repository.EventStore,
	feed *alertfeed.Hub,
	c cache.Service,
	log *applogger.Logger,
) (repository.EventSink, error) {
	fan := usecase.NewFanoutSink()
	switch {
	case retry != nil:
		fan.Add("kafka", retry)
	case cfg.HasSink("kafka"):
		fan.Add("kafka", internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic))
	}
	if cfg.HasSink("clickhouse") && store != nil {
		fan.Add("clickhouse", store)
	}
	if feed != nil {
		fan.Add("alertfeed", feed)
	}
	log.Info("event sinks configured", applogger.Strings("sinks", fan.Names()))

	if !cfg.Output.Dedup.Enabled {
		return fan, nil
	}
	dedup, err := usecase.NewDedupSink(fan, c, cfg.Output.Dedup.TTL)
	if err != nil {
		return nil, err
	}
	dedup.SetLogger(log)
	return dedup, nil
}

// ProvidePairConsumer creates the track pair pipeline.
func ProvidePairConsumer(
	detector Detector,
	sink repository.EventSink,
	errs *metrics.ErrorCounter,
	m repository.Metrics,
	log *applogger.Logger,
) (*PairConsumer, error) {
	pc, err := usecase.NewPairConsumer[models.RadarHit](detector, sink, errs, m)
	if err != nil {
		return nil, err
	}
	pc.SetLogger(log.With(applogger.String("component", "pairs")))
	return pc, nil
}

// ProvideKafkaPairsHandler handles the track pairs topic.
func ProvideKafkaPairsHandler(cfg *config.Config, pairs *PairConsumer, log *applogger.Logger) *usecase.KafkaPairsHandler {
	return usecase.NewKafkaPairsHandler(cfg.Kafka.PairsTopic, pairs, log)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML, or nil
// when consumption is disabled.
func ProvideKafkaConsumer(cfg *config.Config, reg prometheus.Registerer, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	pkgkafka.SetConsumerMetricsRegisterer(reg)

	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(log.With(applogger.String("component", "kafka_consumer"))),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TraceHook{},
		pkgkafka.PayloadGuardHook{MaxBytes: cfg.Kafka.Consumer.MaxBytes},
		pkgkafka.LoggingHook{Log: log},
	))
	return consumer, nil
}

// ProvideEventsHandler creates the HTTP API handler.
func ProvideEventsHandler(
	cfg *config.Config,
	log *applogger.Logger,
	pairs *PairConsumer,
	trimmer *Trimmer,
	detector Detector,
	store repository.EventStore,
	feed *alertfeed.Hub,
	c cache.Service,
) *api.EventsEchoHandler {
	h := api.NewEventsEchoHandler(log, pairs, trimmer, store, feed).
		WithRateLimit(ratelimit.New(), cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)

	if store != nil {
		h.WithHealthChecks(api.HealthCheck{Name: "clickhouse", Check: store.Health})
	}
	if rd, ok := detector.(*detection.HTTPDetector); ok {
		h.WithHealthChecks(api.HealthCheck{Name: "detector", Check: rd.Health})
	}
	if rc, ok := c.(*cache.RedisCache); ok {
		h.WithHealthChecks(api.HealthCheck{Name: "redis", Check: rc.Ping})
	}
	return h
}

// ProvideHTTPServer creates the Echo server around the API handler.
func ProvideHTTPServer(
	cfg *config.Config,
	h *api.EventsEchoHandler,
	reg prometheus.Registerer,
	g prometheus.Gatherer,
	log *applogger.Logger,
) *xhttp.Server {
	path := ""
	if cfg.Metrics.Enabled {
		path = cfg.Metrics.Path
	}
	return xhttp.NewServer(h,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORSOrigins...),
		xhttp.WithServerLogger(log.With(applogger.String("component", "http"))),
		xhttp.WithMetrics(reg, g, path),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaPairsHandler,
	httpServer *xhttp.Server,
	feed *alertfeed.Hub,
	retry *mid.RetrySink,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	c cache.Service,
) *server.App {
	return server.New(cfg, log, server.Components{
		Consumer: consumer,
		Handler:  kh,
		HTTP:     httpServer,
		Feed:     feed,
		Retry:    retry,
		Producer: producer,
		Cache:    c,
		CH:       chClient,
	})
}
