package models

import "time"

// Direction is the classified directional state of a market.
type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionRange Direction = "range"
)

// TrendState is the current classification for one (symbol, timeframe).
// It is replaced as a whole on every closed candle, never mutated in place.
type TrendState struct {
	Symbol     string
	Timeframe  string
	Direction  Direction
	Strength   float64 // [0,1]
	ComputedAt time.Time
}

// CompositeTrend fuses the per-timeframe states of one symbol into a single
// verdict. Confidence is a pure function of the contributing states.
type CompositeTrend struct {
	Symbol                 string
	Direction              Direction
	Confidence             float64 // [0,1]
	ContributingTimeframes []string
	ComputedAt             time.Time
}
