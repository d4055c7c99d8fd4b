package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mid "AriaPull/internal/middleware"
	"AriaPull/internal/service/alertfeed"
	"AriaPull/pkg/cache"
	pkgch "AriaPull/pkg/clickhouse"
	"AriaPull/pkg/config"
	xhttp "AriaPull/pkg/http"
	pkgkafka "AriaPull/pkg/kafka"
	applogger "AriaPull/pkg/logger"
)

// Components are the long-lived pieces the App starts and stops. Consumer,
// Feed, Retry and CH may be nil when disabled in config.
type Components struct {
	Consumer *pkgkafka.Consumer
	Handler  pkgkafka.MessageHandler
	HTTP     *xhttp.Server
	Feed     *alertfeed.Hub
	Retry    *mid.RetrySink
	Producer *pkgkafka.Producer
	Cache    cache.Service
	CH       *pkgch.Client
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	log *applogger.Logger
	c   Components

	stopFeed context.CancelFunc
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *applogger.Logger, c Components) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{cfg: cfg, log: log, c: c}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done, then
// shuts everything down.
func (a *App) RunContext(ctx context.Context) error {
	if a.c.Feed != nil {
		// outlives ctx so events still in the pipeline reach the hub
		var feedCtx context.Context
		feedCtx, a.stopFeed = context.WithCancel(context.Background())
		go a.c.Feed.Run(feedCtx)
		a.log.Info("alert feed started")
	}

	if a.c.Retry != nil {
		a.c.Retry.Start(context.Background())
	}

	if a.c.Consumer != nil && a.c.Handler != nil {
		a.c.Consumer.RegisterHandler(a.c.Handler)
		if err := a.c.Consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			a.shutdown()
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.c.Handler.Topic()))
	}

	if a.c.HTTP != nil {
		if err := a.c.HTTP.Start(); err != nil {
			a.log.Error("http server start error", applogger.Error(err))
			a.shutdown()
			return err
		}
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	a.shutdown()
	return nil
}

// shutdown stops intake first, then the outputs the pipeline writes to.
func (a *App) shutdown() {
	a.log.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.c.HTTP != nil {
		if err := a.c.HTTP.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.stopFeed != nil {
		a.stopFeed()
	}

	if a.c.Retry != nil {
		if err := a.c.Retry.Stop(ctx); err != nil {
			a.log.Error("retry sink stop error", applogger.Error(err))
		}
	}

	// flush pending aggregated records while the producer is still open
	a.log.RemoveCollector()

	if a.c.Producer != nil {
		if err := a.c.Producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.c.CH != nil {
		if err := a.c.CH.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if a.c.Cache != nil {
		if err := a.c.Cache.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
}
