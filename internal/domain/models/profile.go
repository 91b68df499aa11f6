package models

import "time"

// PriceBucket is one histogram bin of a volume profile.
type PriceBucket struct {
	// Low is the inclusive lower price bound; the bucket spans [Low, Low+Width).
	Low    float64
	Volume float64
}

// VolumeProfile is a snapshot of the rolling volume-by-price histogram for
// one (symbol, timeframe) window. Buckets are ordered by ascending price and
// contain only bins with non-zero volume.
type VolumeProfile struct {
	Symbol          string
	Timeframe       string
	BucketWidth     float64
	Window          int
	Buckets         []PriceBucket
	PointOfControl  PriceBucket
	HighVolumeNodes []PriceBucket
	LowVolumeNodes  []PriceBucket
	TotalVolume     float64
	ComputedAt      time.Time
}
