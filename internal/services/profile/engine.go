package profile

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"TrendPulse/internal/domain/models"
)

// Engine maintains the rolling volume-by-price histogram for one
// (symbol, timeframe). A closed candle's volume is attributed to the bucket
// spanning its close price; close-price attribution keeps the histogram
// deterministic for a given candle sequence. The window slides over the last
// N closed candles: when it overflows, the oldest candle's contribution is
// subtracted from its bucket, so each update stays O(1) amortized.
type Engine struct {
	symbol      string
	timeframe   string
	bucketWidth float64
	window      int
	hvnRatio    float64
	lvnRatio    float64

	mu       sync.RWMutex
	buckets  map[int64]float64
	recent   []*models.Candle // oldest first, len <= window
	lastOpen time.Time
	total    float64
}

// New creates a profile engine. bucketWidth and window must already be
// validated by config loading.
func New(symbol, timeframe string, bucketWidth float64, window int, hvnRatio, lvnRatio float64) *Engine {
	return &Engine{
		symbol:      symbol,
		timeframe:   timeframe,
		bucketWidth: bucketWidth,
		window:      window,
		hvnRatio:    hvnRatio,
		lvnRatio:    lvnRatio,
		buckets:     make(map[int64]float64),
	}
}

// Ingest folds a closed candle into the histogram. Candles must arrive in
// strictly increasing open-time order; duplicates and rewinds are rejected
// with models.ErrOutOfOrder and leave the histogram untouched.
func (e *Engine) Ingest(c *models.Candle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.lastOpen.IsZero() && !c.OpenTime.After(e.lastOpen) {
		return fmt.Errorf("%w: %s %s candle at %s, last accepted %s",
			models.ErrOutOfOrder, e.symbol, e.timeframe, c.OpenTime.UTC(), e.lastOpen.UTC())
	}

	idx := e.bucketIndex(c.Close)
	e.buckets[idx] += c.Volume
	e.total += c.Volume
	e.recent = append(e.recent, c)
	e.lastOpen = c.OpenTime

	if len(e.recent) > e.window {
		old := e.recent[0]
		e.recent = e.recent[1:]
		oldIdx := e.bucketIndex(old.Close)
		e.buckets[oldIdx] -= old.Volume
		e.total -= old.Volume
		if e.buckets[oldIdx] <= 1e-9 {
			delete(e.buckets, oldIdx)
		}
	}
	return nil
}

// Ready reports whether the sliding window is filled.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.recent) >= e.window
}

// Snapshot returns the current VolumeProfile, or models.ErrInsufficientData
// while the window is unfilled.
func (e *Engine) Snapshot() (*models.VolumeProfile, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.recent) < e.window {
		return nil, fmt.Errorf("%w: %s %s has %d of %d candles",
			models.ErrInsufficientData, e.symbol, e.timeframe, len(e.recent), e.window)
	}

	buckets := make([]models.PriceBucket, 0, len(e.buckets))
	for idx, vol := range e.buckets {
		buckets = append(buckets, models.PriceBucket{
			Low:    float64(idx) * e.bucketWidth,
			Volume: vol,
		})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Low < buckets[j].Low })

	var poc models.PriceBucket
	for _, b := range buckets {
		if b.Volume > poc.Volume {
			poc = b
		}
	}

	var hvn, lvn []models.PriceBucket
	for _, b := range buckets {
		switch {
		case b.Volume >= e.hvnRatio*poc.Volume:
			hvn = append(hvn, b)
		case b.Volume <= e.lvnRatio*poc.Volume:
			lvn = append(lvn, b)
		}
	}

	return &models.VolumeProfile{
		Symbol:          e.symbol,
		Timeframe:       e.timeframe,
		BucketWidth:     e.bucketWidth,
		Window:          e.window,
		Buckets:         buckets,
		PointOfControl:  poc,
		HighVolumeNodes: hvn,
		LowVolumeNodes:  lvn,
		TotalVolume:     e.total,
		ComputedAt:      time.Now().UTC(),
	}, nil
}

// TotalVolume returns the histogram's current accumulated volume.
func (e *Engine) TotalVolume() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.total
}

func (e *Engine) bucketIndex(price float64) int64 {
	return int64(math.Floor(price / e.bucketWidth))
}
