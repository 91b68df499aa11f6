package models

import "time"

// Tick is a single normalized trade event from the market feed.
// Timestamp is unix milliseconds as delivered by the exchange.
type Tick struct {
	Symbol    string
	Timestamp int64
	Price     float64
	Volume    float64
}

// Time returns the tick timestamp as time.Time.
func (t *Tick) Time() time.Time { return time.UnixMilli(t.Timestamp) }

// Candle is an OHLCV aggregate over a fixed window for one symbol and timeframe.
// Exactly one open candle exists per (symbol, timeframe); it is closed and
// handed downstream once a tick crosses the window boundary.
type Candle struct {
	Symbol    string
	Timeframe string
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Closed    bool
}

// Apply folds a tick into the open candle.
func (c *Candle) Apply(t *Tick) {
	if t.Price > c.High {
		c.High = t.Price
	}
	if t.Price < c.Low {
		c.Low = t.Price
	}
	c.Close = t.Price
	c.Volume += t.Volume
}

// NewCandle opens a candle seeded from the first tick of the window.
func NewCandle(symbol, timeframe string, openTime time.Time, t *Tick) *Candle {
	return &Candle{
		Symbol:    symbol,
		Timeframe: timeframe,
		OpenTime:  openTime,
		Open:      t.Price,
		High:      t.Price,
		Low:       t.Price,
		Close:     t.Price,
		Volume:    t.Volume,
	}
}
