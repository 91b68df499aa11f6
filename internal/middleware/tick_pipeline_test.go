package middleware

import (
	"context"
	"testing"
	"time"

	"TrendPulse/internal/domain/models"
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

type captureProc struct {
	calls  int
	volume float64
}

func (c *captureProc) Process(_ context.Context, t *models.Tick) error {
	c.calls++
	c.volume += t.Volume
	return nil
}

func tick(symbol string, ts int64, price, volume float64) *models.Tick {
	return &models.Tick{Symbol: symbol, Timestamp: ts, Price: price, Volume: volume}
}

func TestPipelineForwardsEverythingByDefault(t *testing.T) {
	down := &captureProc{}
	p := NewTickPipeline(down, nopMetrics{})

	for i := 0; i < 100; i++ {
		if err := p.Process(context.Background(), tick("BTCUSDT", int64(i+1), 100, 1)); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	if down.calls != 100 {
		t.Fatalf("downstream saw %d ticks, want 100", down.calls)
	}
	if down.volume != 100 {
		t.Fatalf("downstream volume %v, want 100", down.volume)
	}
}

func TestPipelineCapConservesVolume(t *testing.T) {
	down := &captureProc{}
	p := NewTickPipeline(down, nopMetrics{}, WithMaxRPS(50))

	// A burst well inside one 20ms throttle window: only the first tick is
	// forwarded immediately, the rest park their volume.
	for i := 0; i < 100; i++ {
		if err := p.Process(context.Background(), tick("BTCUSDT", int64(i+1), 100, 1)); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	if down.calls != 1 {
		t.Fatalf("burst forwarded %d ticks, want 1", down.calls)
	}

	// Once the window elapses, the next tick carries the parked volume.
	time.Sleep(25 * time.Millisecond)
	if err := p.Process(context.Background(), tick("BTCUSDT", 101, 101, 1)); err != nil {
		t.Fatalf("process after window: %v", err)
	}
	if down.calls != 2 {
		t.Fatalf("downstream saw %d ticks, want 2", down.calls)
	}
	if down.volume != 101 {
		t.Fatalf("downstream volume %v, want 101 (no trade lost)", down.volume)
	}
}

func TestPipelineCapIsPerSymbol(t *testing.T) {
	down := &captureProc{}
	p := NewTickPipeline(down, nopMetrics{}, WithMaxRPS(50))

	if err := p.Process(context.Background(), tick("BTCUSDT", 1, 100, 1)); err != nil {
		t.Fatalf("btc: %v", err)
	}
	if err := p.Process(context.Background(), tick("ETHUSDT", 1, 10, 2)); err != nil {
		t.Fatalf("eth: %v", err)
	}
	if down.calls != 2 || down.volume != 3 {
		t.Fatalf("calls=%d volume=%v, want 2 and 3", down.calls, down.volume)
	}
}

func TestPipelineRejectsInvalidTick(t *testing.T) {
	down := &captureProc{}
	p := NewTickPipeline(down, nopMetrics{})

	cases := []*models.Tick{
		nil,
		{Symbol: "", Timestamp: 1, Price: 100, Volume: 1},
		{Symbol: "BTCUSDT", Timestamp: 0, Price: 100, Volume: 1},
		{Symbol: "BTCUSDT", Timestamp: 1, Price: 0, Volume: 1},
		{Symbol: "BTCUSDT", Timestamp: 1, Price: 100, Volume: -1},
	}
	for i, c := range cases {
		if err := p.Process(context.Background(), c); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if down.calls != 0 {
		t.Fatalf("invalid ticks reached downstream")
	}
}
