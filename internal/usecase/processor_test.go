package usecase

import (
	"context"
	"testing"
	"time"

	"TrendPulse/internal/domain/models"
	drepo "TrendPulse/internal/domain/repository"
	"TrendPulse/pkg/config"
	applogger "TrendPulse/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordTick(string)                      {}
func (nopMetrics) RecordCandleClosed(string, string)      {}
func (nopMetrics) RecordOrderingViolation(string, string) {}
func (nopMetrics) RecordSignal(string, string)            {}
func (nopMetrics) RecordCircuitState(string, bool)        {}
func (nopMetrics) RecordTokens(string, float64)           {}
func (nopMetrics) RecordLastPrice(string, float64)        {}
func (nopMetrics) RecordError(string)                     {}
func (nopMetrics) RecordLatency(string, float64)          {}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func scenarioConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Market.Symbols = []string{"BTCUSDT"}
	cfg.Market.Timeframes = []string{"1m", "5m"}
	cfg.Profile.BucketWidth = 10
	cfg.Profile.WindowSize = 4
	cfg.Profile.HVNRatio = 0.7
	cfg.Profile.LVNRatio = 0.2
	cfg.Trend.FastEMA = 3
	cfg.Trend.SlowEMA = 5
	cfg.Trend.RSIPeriod = 3
	cfg.Trend.VolumeMA = 3
	cfg.Trend.RSIUpperBound = 95
	cfg.Trend.RSILowerBound = 5
	cfg.Trend.MinAgreeing = 2
	cfg.Trend.ActionableConf = 0.5
	cfg.Signal.NodeProximityBps = 50
	cfg.Signal.CooldownDwell = time.Hour
	cfg.Signal.CooldownCandles = 2
	cfg.Signal.QueueSize = 16
	return cfg
}

// climb is a rising close sequence with shallow pullbacks so the RSI stays
// off its extremes while both EMAs align upward.
var climb = []float64{100, 102, 101, 104, 103, 106, 105, 108, 107, 110, 112, 111, 114, 113, 116}

func closedCandle(tf drepo.Timeframe, base time.Time, i int, closePrice float64) *models.Candle {
	return &models.Candle{
		Symbol:    "BTCUSDT",
		Timeframe: string(tf),
		OpenTime:  base.Add(time.Duration(i) * tf.Duration()),
		Open:      closePrice - 1,
		High:      closePrice + 1,
		Low:       closePrice - 2,
		Close:     closePrice,
		Volume:    10,
		Closed:    true,
	}
}

// TestSustainedUptrendEmitsOneSignalThenCoolsDown drives a full sustained
// uptrend through both timeframe pipelines: the machine must stay quiet
// through warm-up, arm on the first multi-timeframe confirmation near the
// high-volume node, emit exactly one buy, suppress the identical pattern
// during cooldown, and only fire again after re-arming.
func TestSustainedUptrendEmitsOneSignalThenCoolsDown(t *testing.T) {
	cfg := scenarioConfig()

	var emitted []*models.Signal
	onSignal := func(_ context.Context, s *models.Signal) { emitted = append(emitted, s) }

	p, err := NewProcessor(cfg, nil, nil, nil, onSignal, testLogger(t), nopMetrics{})
	if err != nil {
		t.Fatalf("processor: %v", err)
	}

	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w1m := p.workers["BTCUSDT"][drepo.TF1m]
	w5m := p.workers["BTCUSDT"][drepo.TF5m]

	// 5m warm-up: even once its own indicators read up, a single agreeing
	// timeframe cannot clear the two-timeframe gate.
	for i := 0; i < 10; i++ {
		w5m.onCandleClosed(ctx, closedCandle(drepo.TF5m, base, i, climb[i]))
	}
	if len(emitted) != 0 {
		t.Fatalf("emitted during warm-up with one agreeing timeframe: %d", len(emitted))
	}

	// The shorter timeframe catches up and joins the up camp; its own closes
	// never fire because evaluation is clocked by the 5m close.
	for i, c := range climb {
		w1m.onCandleClosed(ctx, closedCandle(drepo.TF1m, base, i, c))
	}
	if len(emitted) != 0 {
		t.Fatalf("1m candles alone emitted %d signals", len(emitted))
	}

	// First confirmation (both timeframes up, close inside the dominant
	// volume bucket) arms without firing.
	w5m.onCandleClosed(ctx, closedCandle(drepo.TF5m, base, 10, climb[10]))
	if len(emitted) != 0 {
		t.Fatalf("armed evaluation must not emit, got %d", len(emitted))
	}

	// Persisted confirmation fires exactly once.
	w5m.onCandleClosed(ctx, closedCandle(drepo.TF5m, base, 11, climb[11]))
	if len(emitted) != 1 {
		t.Fatalf("want exactly 1 signal after persisted confirmation, got %d", len(emitted))
	}
	sig := emitted[0]
	if sig.Kind != models.SignalBuy {
		t.Fatalf("kind %s, want buy", sig.Kind)
	}
	if sig.Price != climb[11] {
		t.Fatalf("price %v, want %v", sig.Price, climb[11])
	}
	if sig.Confidence < cfg.Trend.ActionableConf {
		t.Fatalf("confidence %v below actionable threshold", sig.Confidence)
	}
	if sig.Trend == nil || len(sig.Trend.ContributingTimeframes) != 2 {
		t.Fatalf("signal must carry both agreeing timeframes, got %+v", sig.Trend)
	}

	// The pattern keeps confirming, but the cooldown budget (2 candles)
	// suppresses any repeat.
	w5m.onCandleClosed(ctx, closedCandle(drepo.TF5m, base, 12, climb[12]))
	if len(emitted) != 1 {
		t.Fatalf("cooldown violated: %d signals", len(emitted))
	}

	// Cooldown spent -> re-arm, then the next confirmation fires again.
	w5m.onCandleClosed(ctx, closedCandle(drepo.TF5m, base, 13, climb[13]))
	if len(emitted) != 1 {
		t.Fatalf("re-arm evaluation must not emit, got %d", len(emitted))
	}
	w5m.onCandleClosed(ctx, closedCandle(drepo.TF5m, base, 14, climb[14]))
	if len(emitted) != 2 {
		t.Fatalf("want second signal after cooldown and re-arm, got %d", len(emitted))
	}
	if !emitted[1].EmittedAt.After(emitted[0].EmittedAt) {
		t.Fatalf("emission times not strictly increasing: %v then %v",
			emitted[0].EmittedAt, emitted[1].EmittedAt)
	}

	// Read-side surface agrees with the machine.
	state, err := p.SignalState("BTCUSDT")
	if err != nil || state != "cooldown" {
		t.Fatalf("state = %q (%v), want cooldown", state, err)
	}
	trend, err := p.Trend("BTCUSDT")
	if err != nil || trend.Direction != models.DirectionUp {
		t.Fatalf("composite = %+v (%v), want up", trend, err)
	}
	prof, err := p.Profile("BTCUSDT", "5m")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if prof.Window != 4 || len(prof.HighVolumeNodes) == 0 {
		t.Fatalf("profile snapshot incomplete: %+v", prof)
	}
}

// TestProcessorRejectsUnknownTimeframe guards the topology constructor.
func TestProcessorRejectsUnknownTimeframe(t *testing.T) {
	cfg := scenarioConfig()
	cfg.Market.Timeframes = []string{"5m", "7m"}
	if _, err := NewProcessor(cfg, nil, nil, nil, nil, testLogger(t), nopMetrics{}); err == nil {
		t.Fatalf("expected error for unsupported timeframe")
	}
}

// TestStopSymbolIsIsolated stops one symbol's workers and leaves the rest
// reachable through the read surface.
func TestStopSymbolIsIsolated(t *testing.T) {
	cfg := scenarioConfig()
	cfg.Market.Symbols = []string{"BTCUSDT", "ETHUSDT"}

	p, err := NewProcessor(cfg, nil, nil, nil, nil, testLogger(t), nopMetrics{})
	if err != nil {
		t.Fatalf("processor: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	if err := p.StopSymbol("BTCUSDT"); err != nil {
		t.Fatalf("stop symbol: %v", err)
	}
	if err := p.StopSymbol("BTCUSDT"); err == nil {
		t.Fatalf("double stop must error")
	}
	if _, err := p.Trend("ETHUSDT"); err != nil {
		t.Fatalf("remaining symbol unreachable: %v", err)
	}
	p.Stop()
}
