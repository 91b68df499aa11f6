package repository

import (
	"context"
	"time"

	"TrendPulse/internal/domain/models"
)

// MarketStream is the abstract tick feed. The core depends only on the
// normalized Tick fields and per-symbol ordering.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher fans emitted signals and closed candles out to the message bus.
type Publisher interface {
	PublishSignal(ctx context.Context, s *models.Signal) error
	PublishCandle(ctx context.Context, c *models.Candle) error
	Close() error
}

// Storage archives closed candles and emitted signals.
type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	StoreCandle(ctx context.Context, c *models.Candle) error
	StoreSignal(ctx context.Context, s *models.Signal) error
	RecentSignals(ctx context.Context, symbol string, since time.Time, limit int) ([]*models.Signal, error)
	Health(ctx context.Context) error
	Close() error
}

// SignalSink receives emitted signals for delivery. Delivery failure is
// non-fatal for the core; the sink owns its own retry policy.
type SignalSink interface {
	Deliver(ctx context.Context, s *models.Signal) error
}

// Metrics records structured observability events from the core.
type Metrics interface {
	RecordTick(symbol string)
	RecordCandleClosed(symbol, timeframe string)
	RecordOrderingViolation(symbol, timeframe string)
	RecordSignal(symbol, kind string)
	RecordCircuitState(endpointClass string, open bool)
	RecordTokens(endpointClass string, tokens float64)
	RecordLastPrice(symbol string, price float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
