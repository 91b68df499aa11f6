package trend

import (
	"fmt"
	"math"
	"sync"
	"time"

	"TrendPulse/internal/domain/models"
)

// DetectorConfig carries the indicator policy for one detector instance.
type DetectorConfig struct {
	FastEMA       int
	SlowEMA       int
	RSIPeriod     int
	VolumeMA      int
	RSIUpperBound float64 // accumulation gate: RSI must stay below this for up trends
	RSILowerBound float64 // distribution gate: RSI must stay above this for down trends
}

// Detector classifies the directional state of one (symbol, timeframe) from
// its closed-candle stream. Classification follows the accumulation /
// distribution rules of the futures analyzer: price above a rising fast EMA
// above the slow EMA with an un-stretched RSI reads as up, the mirror as
// down, anything else as range. Volume above its moving average scales
// strength up, thin volume scales it down.
//
// Each closed candle replaces the current TrendState as a whole; a rejected
// out-of-order candle leaves the previous state in place.
type Detector struct {
	symbol    string
	timeframe string
	cfg       DetectorConfig

	mu       sync.RWMutex
	fast     *EMA
	slow     *EMA
	rsi      *RSI
	volMA    *SMA
	lastOpen time.Time
	current  models.TrendState
}

// NewDetector creates a detector with the given indicator policy.
func NewDetector(symbol, timeframe string, cfg DetectorConfig) *Detector {
	return &Detector{
		symbol:    symbol,
		timeframe: timeframe,
		cfg:       cfg,
		fast:      NewEMA(cfg.FastEMA),
		slow:      NewEMA(cfg.SlowEMA),
		rsi:       NewRSI(cfg.RSIPeriod),
		volMA:     NewSMA(cfg.VolumeMA),
		current: models.TrendState{
			Symbol:    symbol,
			Timeframe: timeframe,
			Direction: models.DirectionRange,
		},
	}
}

// OnCandle consumes one closed candle and recomputes the trend state.
// Candles must arrive in strictly increasing open-time order.
func (d *Detector) OnCandle(c *models.Candle) (models.TrendState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.lastOpen.IsZero() && !c.OpenTime.After(d.lastOpen) {
		return d.current, fmt.Errorf("%w: %s %s candle at %s, last accepted %s",
			models.ErrOutOfOrder, d.symbol, d.timeframe, c.OpenTime.UTC(), d.lastOpen.UTC())
	}
	d.lastOpen = c.OpenTime

	prevFast := d.fast.Value()
	fast := d.fast.Update(c.Close)
	slow := d.slow.Update(c.Close)
	d.rsi.Update(c.Close)
	volAvg := d.volMA.Value()
	d.volMA.Update(c.Volume)

	state := models.TrendState{
		Symbol:     d.symbol,
		Timeframe:  d.timeframe,
		Direction:  models.DirectionRange,
		ComputedAt: c.OpenTime,
	}

	if !d.fast.Ready() || !d.slow.Ready() || !d.rsi.Ready() {
		d.current = state
		return state, nil
	}

	rsi := d.rsi.Value()
	switch {
	case c.Close > fast && fast > slow && fast > prevFast && rsi < d.cfg.RSIUpperBound:
		state.Direction = models.DirectionUp
		state.Strength = d.strength(c, fast, slow, rsi, volAvg, true)
	case c.Close < fast && fast < slow && fast < prevFast && rsi > d.cfg.RSILowerBound:
		state.Direction = models.DirectionDown
		state.Strength = d.strength(c, fast, slow, rsi, volAvg, false)
	}

	d.current = state
	return state, nil
}

// Current returns the latest trend state.
func (d *Detector) Current() models.TrendState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// strength scores an aligned trend in [0,1]: 0.4 base for the MA alignment,
// up to 0.3 from MA separation, up to 0.3 from volume confirmation.
func (d *Detector) strength(c *models.Candle, fast, slow, rsi, volAvg float64, up bool) float64 {
	s := 0.4

	if slow > 0 {
		sep := math.Abs(fast-slow) / slow
		s += math.Min(sep*100*0.3, 0.3) // 1% separation saturates
	}

	if volAvg > 0 {
		ratio := c.Volume / volAvg
		if ratio > 1 {
			s += math.Min((ratio-1)*0.3, 0.3)
		} else {
			s -= (1 - ratio) * 0.2 // thin volume weakens the read
		}
	}

	if s < 0 {
		s = 0
	}
	if s > 1 {
		s = 1
	}
	return s
}
