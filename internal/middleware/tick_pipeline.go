package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TrendPulse/internal/domain/models"
	domrepo "TrendPulse/internal/domain/repository"
)

// Proc is the minimal downstream interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, t *models.Tick) error
}

// TickPipeline sits between the WebSocket feed and the candle builders. It
// validates every tick and, when a per-symbol rate cap is configured,
// coalesces bursts instead of discarding them: the volume of held-back ticks
// is parked and folded into the next forwarded tick, so the candles account
// for every traded contract either way. The cap is off unless configured.
type TickPipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	maxRPS  int

	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last forwarded time
	parked   map[string]float64   // per-symbol volume awaiting the next forwarded tick
}

type PipelineOption func(*TickPipeline)

// WithMaxRPS caps forwarded ticks per second per symbol. Zero (the default)
// disables the cap.
func WithMaxRPS(n int) PipelineOption {
	return func(p *TickPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// NewTickPipeline creates a new pipeline.
func NewTickPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *TickPipeline {
	p := &TickPipeline{
		proc:     proc,
		metrics:  metrics,
		lastSeen: make(map[string]time.Time),
		parked:   make(map[string]float64),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process validates and forwards a tick downstream, coalescing bursts when a
// rate cap is configured.
func (p *TickPipeline) Process(ctx context.Context, t *models.Tick) error {
	start := time.Now()
	if err := validateTick(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}

	fwd, ok := p.admit(t, start)
	if !ok {
		return nil
	}
	if err := p.proc.Process(ctx, fwd); err != nil {
		p.metrics.RecordError("pipeline_process")
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// admit applies the per-symbol rate cap. A held-back tick parks its volume;
// the next admitted tick carries all parked volume forward, at its own price.
func (p *TickPipeline) admit(t *models.Tick, now time.Time) (*models.Tick, bool) {
	if p.maxRPS <= 0 {
		return t, true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[t.Symbol]
	if !last.IsZero() && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		p.parked[t.Symbol] += t.Volume
		p.metrics.RecordError("pipeline_coalesce")
		return nil, false
	}
	p.lastSeen[t.Symbol] = now
	if vol := p.parked[t.Symbol]; vol > 0 {
		merged := *t
		merged.Volume += vol
		p.parked[t.Symbol] = 0
		return &merged, true
	}
	return t, true
}

func validateTick(t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick nil")
	}
	if t.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if t.Timestamp <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	if t.Price <= 0 || t.Volume < 0 {
		return fmt.Errorf("invalid price/volume")
	}
	return nil
}
