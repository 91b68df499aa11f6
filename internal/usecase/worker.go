package usecase

import (
	"context"
	"errors"

	"TrendPulse/internal/domain/models"
	drepo "TrendPulse/internal/domain/repository"
	"TrendPulse/internal/services/profile"
	"TrendPulse/internal/services/trend"
	applogger "TrendPulse/pkg/logger"
)

// Worker owns the full per-(symbol, timeframe) pipeline: candle builder,
// volume profile, trend detector. One goroutine drains its tick channel, so
// everything downstream of the channel runs single-writer and the ordering
// invariants hold without extra locking.
type Worker struct {
	symbol    string
	timeframe drepo.Timeframe

	builder  *CandleBuilder
	profile  *profile.Engine
	detector *trend.Detector
	coord    *Coordinator

	publisher drepo.Publisher
	storage   drepo.Storage
	logger    *applogger.Logger
	metrics   drepo.Metrics

	in   chan *models.Tick
	done chan struct{}
}

// NewWorker creates a worker. publisher and storage may be nil when the
// corresponding backends are disabled.
func NewWorker(
	symbol string,
	tf drepo.Timeframe,
	prof *profile.Engine,
	det *trend.Detector,
	coord *Coordinator,
	publisher drepo.Publisher,
	storage drepo.Storage,
	l *applogger.Logger,
	m drepo.Metrics,
	queueSize int,
) *Worker {
	if queueSize <= 0 {
		queueSize = 512
	}
	return &Worker{
		symbol:    symbol,
		timeframe: tf,
		builder:   NewCandleBuilder(symbol, tf),
		profile:   prof,
		detector:  det,
		coord:     coord,
		publisher: publisher,
		storage:   storage,
		logger:    l,
		metrics:   m,
		in:        make(chan *models.Tick, queueSize),
		done:      make(chan struct{}),
	}
}

// Start launches the worker loop; it exits when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-w.in:
				if t == nil {
					continue
				}
				w.onTick(ctx, t)
			}
		}
	}()
}

// Offer hands a tick to the worker without blocking; under backpressure the
// tick is dropped and counted.
func (w *Worker) Offer(t *models.Tick) {
	select {
	case w.in <- t:
	default:
		w.metrics.RecordError("worker_queue_full")
	}
}

// Wait blocks until the worker loop has exited.
func (w *Worker) Wait() { <-w.done }

func (w *Worker) onTick(ctx context.Context, t *models.Tick) {
	closed, err := w.builder.OnTick(t)
	if err != nil {
		if errors.Is(err, models.ErrOutOfOrder) {
			w.metrics.RecordOrderingViolation(w.symbol, string(w.timeframe))
			w.logger.Debug("worker: dropped out-of-order tick",
				applogger.String("symbol", w.symbol),
				applogger.String("timeframe", string(w.timeframe)),
				applogger.Error(err),
			)
			return
		}
		w.metrics.RecordError("candle_build")
		return
	}
	if closed == nil {
		return
	}
	w.onCandleClosed(ctx, closed)
}

func (w *Worker) onCandleClosed(ctx context.Context, c *models.Candle) {
	w.metrics.RecordCandleClosed(w.symbol, string(w.timeframe))

	if err := w.profile.Ingest(c); err != nil {
		w.metrics.RecordOrderingViolation(w.symbol, string(w.timeframe))
		w.logger.Warn("worker: profile rejected candle",
			applogger.String("symbol", w.symbol),
			applogger.String("timeframe", string(w.timeframe)),
			applogger.Error(err),
		)
	}
	state, err := w.detector.OnCandle(c)
	if err != nil {
		w.metrics.RecordOrderingViolation(w.symbol, string(w.timeframe))
	}

	if w.publisher != nil {
		if err := w.publisher.PublishCandle(ctx, c); err != nil {
			w.metrics.RecordError("publish_candle")
			w.logger.Error("worker: publish candle failed", applogger.Error(err))
		}
	}
	if w.storage != nil {
		if err := w.storage.StoreCandle(ctx, c); err != nil {
			w.metrics.RecordError("store_candle")
			w.logger.Error("worker: store candle failed", applogger.Error(err))
		}
	}

	w.coord.OnCandleClosed(ctx, c, state)
}

// Seed replays historical closed candles through the profile and detector so
// live evaluation starts with warm windows. Seeding never emits signals.
func (w *Worker) Seed(candles []*models.Candle) {
	for _, c := range candles {
		_ = w.profile.Ingest(c)
		if state, err := w.detector.OnCandle(c); err == nil {
			w.coord.Seed(w.timeframe, state)
		}
	}
	w.logger.Info("worker: seeded",
		applogger.String("symbol", w.symbol),
		applogger.String("timeframe", string(w.timeframe)),
		applogger.Int("candles", len(candles)),
	)
}

// ProfileSnapshot exposes the worker's current volume profile.
func (w *Worker) ProfileSnapshot() (*models.VolumeProfile, error) {
	return w.profile.Snapshot()
}

// TrendState exposes the worker's current trend state.
func (w *Worker) TrendState() models.TrendState {
	return w.detector.Current()
}
