package service

import (
	"context"
	"time"

	"TrendPulse/internal/domain/models"
)

// MarketReader is the read-side surface the HTTP handlers consume. It is
// implemented by the usecase processor over its live workers.
type MarketReader interface {
	// Symbols lists the symbols currently tracked.
	Symbols() []string
	// Profile returns the current volume profile for one (symbol, timeframe),
	// or models.ErrInsufficientData while the window is unfilled.
	Profile(symbol, timeframe string) (*models.VolumeProfile, error)
	// Trend returns the current composite trend for a symbol.
	Trend(symbol string) (models.CompositeTrend, error)
	// SignalState returns the signal machine state for a symbol.
	SignalState(symbol string) (string, error)
	// IsStreaming reports whether the market feed is connected.
	IsStreaming() bool
}

// SignalHistory reads back archived signals.
type SignalHistory interface {
	RecentSignals(ctx context.Context, symbol string, since time.Time, limit int) ([]*models.Signal, error)
}
