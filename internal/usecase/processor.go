package usecase

import (
	"context"
	"fmt"
	"sync"

	"TrendPulse/internal/domain/models"
	drepo "TrendPulse/internal/domain/repository"
	"TrendPulse/internal/services/profile"
	"TrendPulse/internal/services/signalengine"
	"TrendPulse/internal/services/trend"
	"TrendPulse/pkg/config"
	applogger "TrendPulse/pkg/logger"
)

// KlineSource fetches historical candles for warm-up. It is implemented by
// the exchange REST client; nil disables warm-up.
type KlineSource interface {
	Klines(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) ([]*models.Candle, error)
}

// Processor owns the analytic topology: one worker per (symbol, timeframe)
// and one coordinator per symbol. It implements the pipeline's downstream
// Process step by routing each validated tick to every timeframe worker of
// its symbol, and the MarketReader surface the HTTP layer serves from.
type Processor struct {
	cfg        *config.Config
	timeframes []drepo.Timeframe
	evalTF     drepo.Timeframe

	mu      sync.RWMutex
	workers map[string]map[drepo.Timeframe]*Worker
	coords  map[string]*Coordinator
	stops   map[string]context.CancelFunc

	klines    KlineSource
	publisher drepo.Publisher
	storage   drepo.Storage
	onSignal  SignalHandler
	streaming func() bool

	logger  *applogger.Logger
	metrics drepo.Metrics
}

// NewProcessor builds the full worker topology from configuration.
// klines, publisher and storage may be nil when disabled.
func NewProcessor(
	cfg *config.Config,
	klines KlineSource,
	publisher drepo.Publisher,
	storage drepo.Storage,
	onSignal SignalHandler,
	l *applogger.Logger,
	m drepo.Metrics,
) (*Processor, error) {
	tfs := make([]drepo.Timeframe, 0, len(cfg.Market.Timeframes))
	for _, raw := range cfg.Market.Timeframes {
		tf := drepo.Timeframe(raw)
		if !drepo.IsValidTimeframe(tf) {
			return nil, fmt.Errorf("unsupported timeframe %q", raw)
		}
		tfs = append(tfs, tf)
	}
	evalTF := drepo.DefaultTimeframe()
	if !containsTF(tfs, evalTF) {
		evalTF = tfs[0]
	}

	p := &Processor{
		cfg:        cfg,
		timeframes: tfs,
		evalTF:     evalTF,
		workers:    make(map[string]map[drepo.Timeframe]*Worker),
		coords:     make(map[string]*Coordinator),
		stops:      make(map[string]context.CancelFunc),
		klines:     klines,
		publisher:  publisher,
		storage:    storage,
		onSignal:   onSignal,
		logger:     l,
		metrics:    m,
	}

	for _, symbol := range cfg.Market.Symbols {
		p.buildSymbol(symbol)
	}
	return p, nil
}

// buildSymbol wires the coordinator and the per-timeframe workers of one
// symbol. The evaluation worker's profile engine backs the coordinator's
// snapshot closure.
func (p *Processor) buildSymbol(symbol string) {
	agg := trend.NewAggregator(symbol, p.cfg.Trend.MinAgreeing)
	engine := signalengine.New(symbol, signalengine.Config{
		ActionableConfidence: p.cfg.Trend.ActionableConf,
		NodeProximityBps:     p.cfg.Signal.NodeProximityBps,
		CooldownDwell:        p.cfg.Signal.CooldownDwell,
		CooldownCandles:      p.cfg.Signal.CooldownCandles,
	})

	byTF := make(map[drepo.Timeframe]*Worker, len(p.timeframes))
	var evalWorker *Worker

	coord := NewCoordinator(symbol, p.evalTF, agg, engine,
		func() (*models.VolumeProfile, error) { return evalWorker.ProfileSnapshot() },
		p.handleSignal,
		p.logger, p.metrics,
	)

	for _, tf := range p.timeframes {
		prof := profile.New(
			symbol, string(tf),
			p.cfg.BucketWidthFor(symbol),
			p.cfg.Profile.WindowSize,
			p.cfg.Profile.HVNRatio,
			p.cfg.Profile.LVNRatio,
		)
		det := trend.NewDetector(symbol, string(tf), trend.DetectorConfig{
			FastEMA:       p.cfg.Trend.FastEMA,
			SlowEMA:       p.cfg.Trend.SlowEMA,
			RSIPeriod:     p.cfg.Trend.RSIPeriod,
			VolumeMA:      p.cfg.Trend.VolumeMA,
			RSIUpperBound: p.cfg.Trend.RSIUpperBound,
			RSILowerBound: p.cfg.Trend.RSILowerBound,
		})
		w := NewWorker(symbol, tf, prof, det, coord,
			p.publisher, p.storage, p.logger, p.metrics, p.cfg.Signal.QueueSize)
		byTF[tf] = w
		if tf == p.evalTF {
			evalWorker = w
		}
	}

	p.workers[symbol] = byTF
	p.coords[symbol] = coord
}

func (p *Processor) handleSignal(ctx context.Context, sig *models.Signal) {
	if p.publisher != nil {
		if err := p.publisher.PublishSignal(ctx, sig); err != nil {
			p.metrics.RecordError("publish_signal")
			p.logger.Error("processor: publish signal failed", applogger.Error(err))
		}
	}
	if p.storage != nil {
		if err := p.storage.StoreSignal(ctx, sig); err != nil {
			p.metrics.RecordError("store_signal")
			p.logger.Error("processor: store signal failed", applogger.Error(err))
		}
	}
	if p.onSignal != nil {
		p.onSignal(ctx, sig)
	}
}

// Start warms up indicator windows from historical klines, then launches all
// workers. Each symbol gets its own cancel so it can be stopped alone.
func (p *Processor) Start(ctx context.Context) {
	p.warmup(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	for symbol, byTF := range p.workers {
		symCtx, cancel := context.WithCancel(ctx)
		p.stops[symbol] = cancel
		for _, w := range byTF {
			w.Start(symCtx)
		}
	}
}

// warmup seeds every worker from REST klines. Failures degrade to a cold
// start for that (symbol, timeframe) only.
func (p *Processor) warmup(ctx context.Context) {
	if p.klines == nil || p.cfg.Market.Binance.WarmupCandles <= 0 {
		return
	}
	for symbol, byTF := range p.workers {
		for tf, w := range byTF {
			candles, err := p.klines.Klines(ctx, symbol, tf, p.cfg.Market.Binance.WarmupCandles)
			if err != nil {
				p.metrics.RecordError("warmup")
				p.logger.Warn("processor: warm-up failed, starting cold",
					applogger.String("symbol", symbol),
					applogger.String("timeframe", string(tf)),
					applogger.Error(err),
				)
				continue
			}
			w.Seed(candles)
		}
	}
}

// Process routes one validated tick to every timeframe worker of its symbol.
// Unknown symbols are counted and dropped.
func (p *Processor) Process(_ context.Context, t *models.Tick) error {
	p.mu.RLock()
	byTF, ok := p.workers[t.Symbol]
	p.mu.RUnlock()
	if !ok {
		p.metrics.RecordError("unknown_symbol")
		return nil
	}
	p.metrics.RecordTick(t.Symbol)
	p.metrics.RecordLastPrice(t.Symbol, t.Price)
	for _, w := range byTF {
		w.Offer(t)
	}
	return nil
}

// StopSymbol cancels one symbol's workers; the rest keep running.
func (p *Processor) StopSymbol(symbol string) error {
	p.mu.Lock()
	cancel, ok := p.stops[symbol]
	if ok {
		delete(p.stops, symbol)
	}
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("symbol %q not running", symbol)
	}
	cancel()
	for _, w := range p.workers[symbol] {
		w.Wait()
	}
	p.logger.Info("processor: symbol stopped", applogger.String("symbol", symbol))
	return nil
}

// Stop cancels all workers and waits for them to drain.
func (p *Processor) Stop() {
	p.mu.Lock()
	stops := p.stops
	p.stops = make(map[string]context.CancelFunc)
	p.mu.Unlock()

	for _, cancel := range stops {
		cancel()
	}
	for _, byTF := range p.workers {
		for _, w := range byTF {
			w.Wait()
		}
	}
}

// SetStreaming installs the feed-connected probe used by IsStreaming.
func (p *Processor) SetStreaming(fn func() bool) { p.streaming = fn }

// --- service.MarketReader ---

// Symbols lists the configured symbols.
func (p *Processor) Symbols() []string {
	out := make([]string, len(p.cfg.Market.Symbols))
	copy(out, p.cfg.Market.Symbols)
	return out
}

// Profile returns the current volume profile of one (symbol, timeframe).
func (p *Processor) Profile(symbol, timeframe string) (*models.VolumeProfile, error) {
	tf := p.evalTF
	if timeframe != "" {
		tf = drepo.Timeframe(timeframe)
		if !drepo.IsValidTimeframe(tf) {
			return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
		}
	}
	p.mu.RLock()
	byTF, found := p.workers[symbol]
	p.mu.RUnlock()
	if !found {
		return nil, fmt.Errorf("unknown symbol %q", symbol)
	}
	w, found := byTF[tf]
	if !found {
		return nil, fmt.Errorf("timeframe %q not tracked", timeframe)
	}
	return w.ProfileSnapshot()
}

// Trend returns the composite trend of one symbol.
func (p *Processor) Trend(symbol string) (models.CompositeTrend, error) {
	p.mu.RLock()
	coord, ok := p.coords[symbol]
	p.mu.RUnlock()
	if !ok {
		return models.CompositeTrend{}, fmt.Errorf("unknown symbol %q", symbol)
	}
	return coord.Composite(), nil
}

// SignalState returns the signal machine state of one symbol.
func (p *Processor) SignalState(symbol string) (string, error) {
	p.mu.RLock()
	coord, ok := p.coords[symbol]
	p.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown symbol %q", symbol)
	}
	return string(coord.State()), nil
}

// IsStreaming reports whether the market feed is connected.
func (p *Processor) IsStreaming() bool {
	if p.streaming == nil {
		return false
	}
	return p.streaming()
}

func containsTF(tfs []drepo.Timeframe, tf drepo.Timeframe) bool {
	for _, t := range tfs {
		if t == tf {
			return true
		}
	}
	return false
}
