package profile

import (
	"errors"
	"math"
	"testing"
	"time"

	"TrendPulse/internal/domain/models"
)

func mkCandle(openTime time.Time, close, volume float64) *models.Candle {
	return &models.Candle{
		Symbol:    "BTCUSDT",
		Timeframe: "5m",
		OpenTime:  openTime,
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    volume,
		Closed:    true,
	}
}

func TestVolumeConservation(t *testing.T) {
	e := New("BTCUSDT", "5m", 10, 4, 0.7, 0.2)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	var want float64
	closes := []float64{100, 105, 112, 108}
	vols := []float64{3, 7, 2, 5}
	for i := range closes {
		if err := e.Ingest(mkCandle(base.Add(time.Duration(i)*5*time.Minute), closes[i], vols[i])); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
		want += vols[i]
	}

	snap, err := e.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	var got float64
	for _, b := range snap.Buckets {
		got += b.Volume
	}
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("bucket sum %v, want %v", got, want)
	}
	if math.Abs(snap.TotalVolume-want) > 1e-9 {
		t.Fatalf("total %v, want %v", snap.TotalVolume, want)
	}
}

func TestSlidingWindowEvictsExactly(t *testing.T) {
	e := New("BTCUSDT", "5m", 10, 2, 0.7, 0.2)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// First candle lands in bucket 10 and must be fully evicted by the third.
	if err := e.Ingest(mkCandle(base, 100, 9)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := e.Ingest(mkCandle(base.Add(5*time.Minute), 200, 4)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := e.Ingest(mkCandle(base.Add(10*time.Minute), 300, 6)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	snap, err := e.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if math.Abs(snap.TotalVolume-10) > 1e-9 {
		t.Fatalf("total after slide %v, want 10", snap.TotalVolume)
	}
	for _, b := range snap.Buckets {
		if b.Low == 100 {
			t.Fatalf("evicted bucket 100 still present with volume %v", b.Volume)
		}
	}
}

func TestOutOfOrderRejectedAndStateUnchanged(t *testing.T) {
	e := New("BTCUSDT", "5m", 10, 2, 0.7, 0.2)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := e.Ingest(mkCandle(base, 100, 3)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := e.Ingest(mkCandle(base.Add(5*time.Minute), 110, 4)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	before, err := e.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// Duplicate timestamp.
	if err := e.Ingest(mkCandle(base.Add(5*time.Minute), 120, 99)); !errors.Is(err, models.ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}
	// Earlier timestamp.
	if err := e.Ingest(mkCandle(base.Add(-5*time.Minute), 90, 50)); !errors.Is(err, models.ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}

	after, err := e.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if after.TotalVolume != before.TotalVolume || len(after.Buckets) != len(before.Buckets) {
		t.Fatalf("state changed after rejected ingest: before %+v after %+v", before, after)
	}
}

func TestSnapshotRequiresFullWindow(t *testing.T) {
	e := New("BTCUSDT", "5m", 10, 3, 0.7, 0.2)
	if err := e.Ingest(mkCandle(time.Now().UTC(), 100, 1)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := e.Snapshot(); !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestPointOfControlAndNodes(t *testing.T) {
	e := New("BTCUSDT", "5m", 10, 4, 0.7, 0.2)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Bucket 100 gets 10 (POC), 110 gets 8 (HVN), 120 and 130 stay thin (LVN).
	ingests := []struct {
		close, vol float64
	}{
		{100, 10},
		{110, 8},
		{120, 1},
		{135, 0.5},
	}
	for i, in := range ingests {
		if err := e.Ingest(mkCandle(base.Add(time.Duration(i)*5*time.Minute), in.close, in.vol)); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}

	snap, err := e.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.PointOfControl.Low != 100 {
		t.Fatalf("poc at %v, want 100", snap.PointOfControl.Low)
	}

	hasHVN := func(low float64) bool {
		for _, b := range snap.HighVolumeNodes {
			if b.Low == low {
				return true
			}
		}
		return false
	}
	if !hasHVN(100) || !hasHVN(110) {
		t.Fatalf("expected HVNs at 100 and 110, got %+v", snap.HighVolumeNodes)
	}
	if len(snap.LowVolumeNodes) != 2 {
		t.Fatalf("expected LVNs at 120 and 130, got %+v", snap.LowVolumeNodes)
	}
}
