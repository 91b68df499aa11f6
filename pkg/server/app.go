package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TrendPulse/internal/domain/repository"
	domservice "TrendPulse/internal/domain/service"
	"TrendPulse/internal/handler/api"
	icache "TrendPulse/internal/service/cache"
	"TrendPulse/internal/service/notify"
	"TrendPulse/internal/usecase"
	pkgch "TrendPulse/pkg/clickhouse"
	"TrendPulse/pkg/config"
	xhttp "TrendPulse/pkg/http"
	applogger "TrendPulse/pkg/logger"
)

// App encapsulates the entire application lifecycle: market feed, analytic
// workers, notification fan-out, HTTP API, and the backing clients.
type App struct {
	cfg       *config.Config
	logger    *applogger.Logger
	collector *usecase.TickCollector
	processor *usecase.Processor
	notifier  *notify.Notifier
	storage   repository.Storage
	publisher repository.Publisher
	chClient  *pkgch.Client
	snapshots icache.BytesCache

	httpServer *xhttp.Server
}

// New creates a new App instance. storage, publisher, and chClient may be
// nil when their backends are disabled.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.TickCollector,
	processor *usecase.Processor,
	notifier *notify.Notifier,
	storage repository.Storage,
	publisher repository.Publisher,
	chClient *pkgch.Client,
	snapshots icache.BytesCache,
) *App {
	return &App{
		cfg:       cfg,
		logger:    l,
		collector: collector,
		processor: processor,
		notifier:  notifier,
		storage:   storage,
		publisher: publisher,
		chClient:  chClient,
		snapshots: snapshots,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var history domservice.SignalHistory
	if a.storage != nil {
		history = a.storage
	}
	handler := api.NewMarketHandler(a.logger, a.processor, history, a.snapshots, a.cfg.Cache.SnapshotTTL)
	a.httpServer = xhttp.NewServer(handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsLogging(a.logger, time.Second),
	)

	a.notifier.Start(ctx)
	a.processor.Start(ctx)

	if err := a.collector.Start(ctx); err != nil {
		a.logger.Error("collector start failed", applogger.Error(err))
		return err
	}
	a.logger.Info("collector started",
		applogger.Strings("symbols", a.cfg.Market.Symbols),
		applogger.Strings("timeframes", a.cfg.Market.Timeframes),
	)

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops everything in dependency order: feed first so no new ticks
// arrive, then workers, then delivery and the backing clients.
func (a *App) shutdown(ctx context.Context) error {
	if err := a.collector.Shutdown(ctx); err != nil {
		a.logger.Warn("collector stop error", applogger.Error(err))
	}

	a.processor.Stop()
	a.notifier.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("storage close error", applogger.Error(err))
		}
	} else if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
