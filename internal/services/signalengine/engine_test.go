package signalengine

import (
	"testing"
	"time"

	"TrendPulse/internal/domain/models"
)

func testCfg() Config {
	return Config{
		ActionableConfidence: 0.6,
		NodeProximityBps:     25,
		CooldownDwell:        30 * time.Minute,
		CooldownCandles:      3,
	}
}

// profileWithHVN returns a profile whose only high-volume node is centered
// at price (bucket width 1).
func profileWithHVN(price float64) *models.VolumeProfile {
	return &models.VolumeProfile{
		Symbol:         "BTCUSDT",
		Timeframe:      "5m",
		BucketWidth:    1,
		Window:         4,
		PointOfControl: models.PriceBucket{Low: price - 0.5, Volume: 100},
		HighVolumeNodes: []models.PriceBucket{
			{Low: price - 0.5, Volume: 100},
		},
	}
}

func upTrend(conf float64) *models.CompositeTrend {
	return &models.CompositeTrend{
		Symbol:                 "BTCUSDT",
		Direction:              models.DirectionUp,
		Confidence:             conf,
		ContributingTimeframes: []string{"5m", "15m", "1h"},
	}
}

func downTrend(conf float64) *models.CompositeTrend {
	return &models.CompositeTrend{
		Symbol:     "BTCUSDT",
		Direction:  models.DirectionDown,
		Confidence: conf,
	}
}

func TestArmThenFireOnPersistedConfirmation(t *testing.T) {
	e := New("BTCUSDT", testCfg())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if sig := e.Evaluate(base, 100, profileWithHVN(100), upTrend(0.8)); sig != nil {
		t.Fatalf("first confirmation must arm, not fire")
	}
	if e.State() != StateArmed {
		t.Fatalf("state %s, want armed", e.State())
	}

	sig := e.Evaluate(base.Add(5*time.Minute), 100.2, profileWithHVN(100), upTrend(0.8))
	if sig == nil {
		t.Fatalf("persisted confirmation must fire")
	}
	if sig.Kind != models.SignalBuy {
		t.Fatalf("kind %s, want buy", sig.Kind)
	}
	if e.State() != StateCooldown {
		t.Fatalf("state %s, want cooldown after firing", e.State())
	}
}

func TestContraryConfirmationCancelsWithoutFiring(t *testing.T) {
	e := New("BTCUSDT", testCfg())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	e.Evaluate(base, 100, profileWithHVN(100), upTrend(0.8))
	if e.State() != StateArmed {
		t.Fatalf("state %s, want armed", e.State())
	}

	sig := e.Evaluate(base.Add(5*time.Minute), 100, profileWithHVN(100), downTrend(0.8))
	if sig != nil {
		t.Fatalf("contrary confirmation must not fire, got %+v", sig)
	}
	if e.State() != StateIdle {
		t.Fatalf("state %s, want idle after cancel", e.State())
	}
}

func TestInsufficientDataKeepsIdle(t *testing.T) {
	e := New("BTCUSDT", testCfg())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if sig := e.Evaluate(now, 100, nil, upTrend(0.9)); sig != nil || e.State() != StateIdle {
		t.Fatalf("nil profile must keep idle, state %s", e.State())
	}
	if sig := e.Evaluate(now, 100, profileWithHVN(100), nil); sig != nil || e.State() != StateIdle {
		t.Fatalf("nil trend must keep idle, state %s", e.State())
	}
	if sig := e.Evaluate(now, 100, profileWithHVN(100), upTrend(0.3)); sig != nil || e.State() != StateIdle {
		t.Fatalf("weak confidence must keep idle, state %s", e.State())
	}
}

func TestPriceAwayFromNodeNeverArms(t *testing.T) {
	e := New("BTCUSDT", testCfg())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if sig := e.Evaluate(now, 150, profileWithHVN(100), upTrend(0.9)); sig != nil || e.State() != StateIdle {
		t.Fatalf("price far from HVN must keep idle, state %s", e.State())
	}
}

func TestCooldownSuppressesRepeatedSignals(t *testing.T) {
	e := New("BTCUSDT", testCfg())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	step := 5 * time.Minute

	e.Evaluate(base, 100, profileWithHVN(100), upTrend(0.8))
	first := e.Evaluate(base.Add(step), 100, profileWithHVN(100), upTrend(0.8))
	if first == nil {
		t.Fatalf("expected first signal")
	}

	// The identical pattern repeats immediately: cooldown must hold for
	// CooldownCandles evaluations even though confirmation never drops.
	for i := 2; i < 5; i++ {
		if sig := e.Evaluate(base.Add(time.Duration(i)*step), 100, profileWithHVN(100), upTrend(0.8)); sig != nil {
			t.Fatalf("evaluation %d emitted during cooldown", i)
		}
	}

	// Cooldown candle budget (3) is spent; the machine re-arms and needs one
	// more confirmation to fire again.
	sig := e.Evaluate(base.Add(5*step), 100, profileWithHVN(100), upTrend(0.8))
	if sig == nil {
		t.Fatalf("expected second signal after cooldown and re-arm")
	}
	if !sig.EmittedAt.After(first.EmittedAt) {
		t.Fatalf("emission times must be strictly increasing: %v then %v", first.EmittedAt, sig.EmittedAt)
	}
}

func TestCooldownDwellExpiry(t *testing.T) {
	cfg := testCfg()
	cfg.CooldownCandles = 1000 // dwell expires first
	e := New("BTCUSDT", cfg)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	e.Evaluate(base, 100, profileWithHVN(100), upTrend(0.8))
	if sig := e.Evaluate(base.Add(5*time.Minute), 100, profileWithHVN(100), upTrend(0.8)); sig == nil {
		t.Fatalf("expected signal")
	}

	// Dwell runs from the firing evaluation at +5m until +35m.
	if sig := e.Evaluate(base.Add(10*time.Minute), 100, profileWithHVN(100), upTrend(0.8)); sig != nil {
		t.Fatalf("emitted inside dwell window")
	}
	if sig := e.Evaluate(base.Add(30*time.Minute), 100, profileWithHVN(100), upTrend(0.8)); sig != nil {
		t.Fatalf("emitted inside dwell window")
	}
	// Past the dwell the machine re-arms, then fires on the next evaluation.
	if sig := e.Evaluate(base.Add(36*time.Minute), 100, profileWithHVN(100), upTrend(0.8)); sig != nil {
		t.Fatalf("re-arm evaluation must not fire")
	}
	if sig := e.Evaluate(base.Add(41*time.Minute), 100, profileWithHVN(100), upTrend(0.8)); sig == nil {
		t.Fatalf("expected signal after dwell expiry")
	}
}
