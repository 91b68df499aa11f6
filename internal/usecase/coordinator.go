package usecase

import (
	"context"
	"errors"
	"sync"

	"TrendPulse/internal/domain/models"
	drepo "TrendPulse/internal/domain/repository"
	"TrendPulse/internal/services/signalengine"
	"TrendPulse/internal/services/trend"
	applogger "TrendPulse/pkg/logger"
)

// SignalHandler receives every emitted signal exactly once.
type SignalHandler func(ctx context.Context, s *models.Signal)

// Coordinator is the per-symbol fan-in point. Workers of every timeframe
// report their closed candles here; the coordinator folds the trend states
// into the aggregator and, on each close of the evaluation timeframe, runs
// one step of the signal state machine. A single mutex serializes the whole
// update-then-evaluate step, so the machine never sees a half-updated
// composite.
type Coordinator struct {
	symbol string
	evalTF drepo.Timeframe

	mu     sync.Mutex
	agg    *trend.Aggregator
	engine *signalengine.Engine

	snapshot func() (*models.VolumeProfile, error) // evaluation-timeframe profile
	onSignal SignalHandler

	logger  *applogger.Logger
	metrics drepo.Metrics
}

// NewCoordinator creates a coordinator for one symbol. snapshot must return
// the evaluation timeframe's current volume profile.
func NewCoordinator(
	symbol string,
	evalTF drepo.Timeframe,
	agg *trend.Aggregator,
	engine *signalengine.Engine,
	snapshot func() (*models.VolumeProfile, error),
	onSignal SignalHandler,
	l *applogger.Logger,
	m drepo.Metrics,
) *Coordinator {
	return &Coordinator{
		symbol:   symbol,
		evalTF:   evalTF,
		agg:      agg,
		engine:   engine,
		snapshot: snapshot,
		onSignal: onSignal,
		logger:   l,
		metrics:  m,
	}
}

// OnCandleClosed folds one worker's closed candle into the composite. Closes
// of the evaluation timeframe additionally drive the signal state machine,
// clocked by the candle's close time so replays are deterministic.
func (c *Coordinator) OnCandleClosed(ctx context.Context, candle *models.Candle, state models.TrendState) {
	c.mu.Lock()
	tf := drepo.Timeframe(candle.Timeframe)
	c.agg.Update(tf, state)

	if tf != c.evalTF {
		c.mu.Unlock()
		return
	}

	prof, err := c.snapshot()
	if err != nil && !errors.Is(err, models.ErrInsufficientData) {
		c.logger.Warn("coordinator: profile snapshot failed",
			applogger.String("symbol", c.symbol),
			applogger.Error(err),
		)
	}
	composite := c.agg.Composite()
	closeTime := candle.OpenTime.Add(c.evalTF.Duration())
	sig := c.engine.Evaluate(closeTime, candle.Close, prof, &composite)
	c.mu.Unlock()

	if sig == nil {
		return
	}
	c.metrics.RecordSignal(sig.Symbol, string(sig.Kind))
	c.logger.Info("signal emitted",
		applogger.String("symbol", sig.Symbol),
		applogger.String("kind", string(sig.Kind)),
		applogger.Float64("confidence", sig.Confidence),
		applogger.Float64("price", sig.Price),
	)
	if c.onSignal != nil {
		c.onSignal(ctx, sig)
	}
}

// Seed records a warm-up trend state without touching the signal machine.
func (c *Coordinator) Seed(tf drepo.Timeframe, state models.TrendState) {
	c.mu.Lock()
	c.agg.Update(tf, state)
	c.mu.Unlock()
}

// Composite returns the current fused trend.
func (c *Coordinator) Composite() models.CompositeTrend {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agg.Composite()
}

// State returns the signal machine's current state.
func (c *Coordinator) State() signalengine.State {
	return c.engine.State()
}
