package trend

import (
	"errors"
	"testing"
	"time"

	"TrendPulse/internal/domain/models"
)

func testConfig() DetectorConfig {
	return DetectorConfig{
		FastEMA:       3,
		SlowEMA:       5,
		RSIPeriod:     3,
		VolumeMA:      3,
		RSIUpperBound: 95,
		RSILowerBound: 5,
	}
}

func feed(t *testing.T, d *Detector, closes []float64, vol float64) models.TrendState {
	t.Helper()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var st models.TrendState
	var err error
	for i, cl := range closes {
		c := &models.Candle{
			Symbol:    "BTCUSDT",
			Timeframe: "5m",
			OpenTime:  base.Add(time.Duration(i) * 5 * time.Minute),
			Open:      cl,
			High:      cl,
			Low:       cl,
			Close:     cl,
			Volume:    vol,
			Closed:    true,
		}
		st, err = d.OnCandle(c)
		if err != nil {
			t.Fatalf("candle %d: %v", i, err)
		}
	}
	return st
}

func TestDetectorClassifiesUptrend(t *testing.T) {
	d := NewDetector("BTCUSDT", "5m", testConfig())
	// Rising with shallow pullbacks so the RSI gate stays un-stretched.
	closes := []float64{100, 102, 101, 104, 103, 106, 105, 108, 107, 110, 112}
	st := feed(t, d, closes, 10)
	if st.Direction != models.DirectionUp {
		t.Fatalf("direction %s, want up", st.Direction)
	}
	if st.Strength <= 0 || st.Strength > 1 {
		t.Fatalf("strength %v out of range", st.Strength)
	}
}

func TestDetectorClassifiesDowntrend(t *testing.T) {
	d := NewDetector("BTCUSDT", "5m", testConfig())
	closes := []float64{112, 110, 111, 108, 109, 106, 107, 104, 105, 102, 100}
	st := feed(t, d, closes, 10)
	if st.Direction != models.DirectionDown {
		t.Fatalf("direction %s, want down", st.Direction)
	}
}

func TestDetectorHoldsRangeWhileWarmingUp(t *testing.T) {
	d := NewDetector("BTCUSDT", "5m", testConfig())
	st := feed(t, d, []float64{100, 101}, 10)
	if st.Direction != models.DirectionRange || st.Strength != 0 {
		t.Fatalf("expected neutral state during warm-up, got %+v", st)
	}
}

func TestDetectorRejectsOutOfOrderCandle(t *testing.T) {
	d := NewDetector("BTCUSDT", "5m", testConfig())
	closes := []float64{100, 101, 102, 103, 104, 105, 107, 109}
	feed(t, d, closes, 10)
	before := d.Current()

	stale := &models.Candle{
		Symbol:    "BTCUSDT",
		Timeframe: "5m",
		OpenTime:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Close:     50,
		Volume:    999,
		Closed:    true,
	}
	if _, err := d.OnCandle(stale); !errors.Is(err, models.ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}
	if got := d.Current(); got != before {
		t.Fatalf("state changed after rejected candle: %+v != %+v", got, before)
	}
}
