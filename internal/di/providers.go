package di

import (
	"context"
	"fmt"
	"time"

	"TrendPulse/internal/domain/models"
	"TrendPulse/internal/domain/repository"
	mid "TrendPulse/internal/middleware"
	internalrepo "TrendPulse/internal/repository"
	"TrendPulse/internal/service/binance"
	icache "TrendPulse/internal/service/cache"
	"TrendPulse/internal/service/gateway"
	"TrendPulse/internal/service/notify"
	"TrendPulse/internal/usecase"
	pkgch "TrendPulse/pkg/clickhouse"
	"TrendPulse/pkg/config"
	pkgkafka "TrendPulse/pkg/kafka"
	"TrendPulse/pkg/metrics"
	"TrendPulse/pkg/server"

	applogger "TrendPulse/pkg/logger"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideGateway builds the outbound call gateway from the configured rate
// budgets.
func ProvideGateway(cfg *config.Config, l *applogger.Logger, m repository.Metrics) *gateway.Gateway {
	budgets := make(map[string]gateway.Budget, len(cfg.Gateway.Budgets))
	for _, b := range cfg.Gateway.Budgets {
		budgets[b.EndpointClass] = gateway.Budget{
			Capacity:     b.Capacity,
			RefillPerSec: b.RefillPerSec,
		}
	}
	return gateway.New(gateway.Config{
		MaxAttempts:      cfg.Gateway.MaxAttempts,
		BackoffMin:       cfg.Gateway.BackoffMin,
		BackoffMax:       cfg.Gateway.BackoffMax,
		BreakerThreshold: cfg.Gateway.BreakerThreshold,
		BreakerCooldown:  cfg.Gateway.BreakerCooldown,
		Budgets:          budgets,
	}, l, m)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when archival
// is disabled.
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
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, false),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideStorage creates the candle/signal archive, or nil when disabled.
func ProvideStorage(chClient *pkgch.Client, l *applogger.Logger) (repository.Storage, error) {
	if chClient == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseStore(chClient, l)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher creates the Kafka publisher, or nil when disabled.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.SignalTopic, cfg.Kafka.CandleTopic)
}

// ProvideMarketStream creates the Binance futures WebSocket feed.
func ProvideMarketStream(cfg *config.Config, l *applogger.Logger) repository.MarketStream {
	return binance.New(
		cfg.Market.Binance.WebSocketURL,
		cfg.Market.Symbols,
		cfg.Market.Binance.ReconnectDelay,
		cfg.Market.Binance.PingInterval,
		l,
	)
}

// ProvideRestClient creates the kline warm-up client.
func ProvideRestClient(cfg *config.Config, gw *gateway.Gateway, l *applogger.Logger) *binance.RestClient {
	return binance.NewRestClient(cfg.Market.Binance.RESTBaseURL, 15*time.Second, gw, l)
}

// ProvideNotifier builds the signal fan-out with every enabled sink.
func ProvideNotifier(cfg *config.Config, gw *gateway.Gateway, l *applogger.Logger, m repository.Metrics) *notify.Notifier {
	var sinks []repository.SignalSink
	if cfg.Telegram.Enabled {
		sinks = append(sinks, notify.NewTelegramSender(
			cfg.Telegram.Token, cfg.Telegram.ChatID, 10*time.Second, gw, l))
	}
	return notify.NewNotifier(sinks, l, m, cfg.Signal.QueueSize)
}

// ProvideProcessor builds the per-symbol analytic topology.
func ProvideProcessor(
	cfg *config.Config,
	rest *binance.RestClient,
	pub repository.Publisher,
	store repository.Storage,
	notifier *notify.Notifier,
	l *applogger.Logger,
	m repository.Metrics,
) (*usecase.Processor, error) {
	var klines usecase.KlineSource
	if rest != nil {
		klines = rest
	}
	onSignal := func(_ context.Context, s *models.Signal) { notifier.Notify(s) }
	return usecase.NewProcessor(cfg, klines, pub, store, onSignal, l, m)
}

// ProvideCollector creates the tick collector with its pipeline.
func ProvideCollector(
	cfg *config.Config,
	stream repository.MarketStream,
	proc *usecase.Processor,
	l *applogger.Logger,
	m repository.Metrics,
) *usecase.TickCollector {
	pipe := mid.NewTickPipeline(proc, m,
		mid.WithMaxRPS(cfg.Pipeline.MaxTicksPerSec),
	)
	return usecase.NewTickCollector(stream, proc, pipe, l, m)
}

// ProvideSnapshotCache chooses Redis when enabled, otherwise in-process TTL.
func ProvideSnapshotCache(cfg *config.Config) icache.BytesCache {
	if cfg.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideApp assembles the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.TickCollector,
	proc *usecase.Processor,
	notifier *notify.Notifier,
	store repository.Storage,
	pub repository.Publisher,
	chClient *pkgch.Client,
	snapshots icache.BytesCache,
) *server.App {
	return server.New(cfg, l, collector, proc, notifier, store, pub, chClient, snapshots)
}
