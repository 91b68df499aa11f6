package usecase

import (
	"fmt"
	"time"

	"TrendPulse/internal/domain/models"
	drepo "TrendPulse/internal/domain/repository"
)

// CandleBuilder folds the tick stream of one (symbol, timeframe) into OHLCV
// candles. At most one candle is open at a time; the first tick at or past
// the window boundary closes it and seeds the next one. Ticks behind the open
// window are rejected so a replayed or disordered feed cannot corrupt a
// candle that downstream consumers may already hold.
type CandleBuilder struct {
	symbol    string
	timeframe drepo.Timeframe
	interval  time.Duration

	open *models.Candle
}

// NewCandleBuilder creates a builder for one (symbol, timeframe).
func NewCandleBuilder(symbol string, tf drepo.Timeframe) *CandleBuilder {
	return &CandleBuilder{
		symbol:    symbol,
		timeframe: tf,
		interval:  tf.Duration(),
	}
}

// OnTick folds one tick in. The returned candle is non-nil exactly when the
// tick crossed a window boundary and closed the previous candle; the closed
// candle's Close/High/Low/Volume never change afterwards.
func (b *CandleBuilder) OnTick(t *models.Tick) (*models.Candle, error) {
	openTime := t.Time().UTC().Truncate(b.interval)

	if b.open == nil {
		b.open = models.NewCandle(b.symbol, string(b.timeframe), openTime, t)
		return nil, nil
	}

	switch {
	case openTime.Before(b.open.OpenTime):
		return nil, fmt.Errorf("%w: %s %s tick at %s behind open candle %s",
			models.ErrOutOfOrder, b.symbol, b.timeframe, t.Time().UTC(), b.open.OpenTime)

	case openTime.Equal(b.open.OpenTime):
		b.open.Apply(t)
		return nil, nil

	default:
		// Boundary crossed: close the current candle, open the next. Windows
		// with no ticks produce no candles.
		closed := b.open
		closed.Closed = true
		b.open = models.NewCandle(b.symbol, string(b.timeframe), openTime, t)
		return closed, nil
	}
}

// Open returns a copy of the currently open candle, or nil before the first
// tick.
func (b *CandleBuilder) Open() *models.Candle {
	if b.open == nil {
		return nil
	}
	c := *b.open
	return &c
}
