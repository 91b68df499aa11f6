package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"TrendPulse/internal/domain/models"
	drepo "TrendPulse/internal/domain/repository"
	"TrendPulse/internal/service/gateway"
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

func testGateway(t *testing.T) *gateway.Gateway {
	t.Helper()
	return gateway.New(gateway.Config{
		MaxAttempts:      2,
		BackoffMin:       time.Millisecond,
		BackoffMax:       4 * time.Millisecond,
		BreakerThreshold: 4,
		BreakerCooldown:  100 * time.Millisecond,
		Budgets:          map[string]gateway.Budget{"klines": {Capacity: 10, RefillPerSec: 10}},
	}, testLogger(t), nopMetrics{})
}

func TestKlinesDropsOpenInterval(t *testing.T) {
	// Three intervals: two closed and the currently forming one, the way the
	// exchange answers a klines query.
	body := `[
		[1700000000000, "100.0", "101.0", "99.0", "100.5", "12.5"],
		[1700000060000, "100.5", "102.0", "100.0", "101.5", "8.0"],
		[1700000120000, "101.5", "101.8", "101.2", "101.6", "1.2"]
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/klines" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewRestClient(srv.URL, 5*time.Second, testGateway(t), testLogger(t))
	candles, err := c.Klines(context.Background(), "BTCUSDT", drepo.TF1m, 3)
	if err != nil {
		t.Fatalf("klines: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2 (open interval dropped)", len(candles))
	}
	last := candles[len(candles)-1]
	if !last.OpenTime.Equal(time.UnixMilli(1700000060000).UTC()) {
		t.Fatalf("last seeded open time %v, want the second interval", last.OpenTime)
	}
	if last.Close != 101.5 || last.Volume != 8.0 {
		t.Fatalf("last candle parsed as close=%v volume=%v", last.Close, last.Volume)
	}
	for i, c := range candles {
		if !c.Closed {
			t.Fatalf("candle %d not marked closed", i)
		}
	}
}

func TestKlinesPermanentStatusNotRetried(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewRestClient(srv.URL, 5*time.Second, testGateway(t), testLogger(t))
	_, err := c.Klines(context.Background(), "NOPEUSDT", drepo.TF1m, 3)
	if !errors.Is(err, models.ErrUpstreamPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if requests != 1 {
		t.Fatalf("permanent status retried: %d requests", requests)
	}
}
