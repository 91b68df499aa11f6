package models

import "time"

// SignalKind is the actionable direction of an emitted signal.
type SignalKind string

const (
	SignalBuy  SignalKind = "buy"
	SignalSell SignalKind = "sell"
)

// Signal is an emitted trading signal. Immutable once emitted; the signal
// engine guarantees EmittedAt is strictly increasing per symbol and that no
// two signals of the same kind fire within the cooldown window.
type Signal struct {
	Symbol     string
	Kind       SignalKind
	Confidence float64
	Price      float64
	Profile    *VolumeProfile
	Trend      *CompositeTrend
	EmittedAt  time.Time
}
