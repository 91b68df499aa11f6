package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
market:
  symbols: ["BTCUSDT", "ETHUSDT"]
  timeframes: ["1m", "5m", "15m"]
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("server.port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Profile.WindowSize != 48 {
		t.Fatalf("profile.window_size = %d, want default 48", cfg.Profile.WindowSize)
	}
	if cfg.Trend.FastEMA != 20 || cfg.Trend.SlowEMA != 50 {
		t.Fatalf("trend EMA defaults = %d/%d, want 20/50", cfg.Trend.FastEMA, cfg.Trend.SlowEMA)
	}
	if cfg.Signal.CooldownDwell != 30*time.Minute {
		t.Fatalf("signal.cooldown_dwell = %v, want 30m", cfg.Signal.CooldownDwell)
	}
	if cfg.Market.Binance.WebSocketURL == "" {
		t.Fatalf("binance websocket url default missing")
	}
	if cfg.Pipeline.MaxTicksPerSec != 0 {
		t.Fatalf("pipeline cap = %d, want 0 (off) by default", cfg.Pipeline.MaxTicksPerSec)
	}
}

func TestLoadPipelineCap(t *testing.T) {
	body := minimalConfig + `
pipeline:
  max_ticks_per_sec: 200
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pipeline.MaxTicksPerSec != 200 {
		t.Fatalf("pipeline cap = %d, want 200", cfg.Pipeline.MaxTicksPerSec)
	}
}

func TestLoadRejectsDuplicateTimeframes(t *testing.T) {
	body := `
market:
  symbols: ["BTCUSDT"]
  timeframes: ["5m", "5m"]
`
	if _, err := Load(writeConfig(t, body)); err == nil || !strings.Contains(err.Error(), "duplicate timeframe") {
		t.Fatalf("expected duplicate timeframe error, got %v", err)
	}
}

func TestLoadRejectsInvertedEMAs(t *testing.T) {
	body := minimalConfig + `
trend:
  fast_ema: 50
  slow_ema: 20
`
	if _, err := Load(writeConfig(t, body)); err == nil || !strings.Contains(err.Error(), "fast_ema") {
		t.Fatalf("expected fast/slow EMA error, got %v", err)
	}
}

func TestLoadRejectsTelegramWithoutToken(t *testing.T) {
	body := minimalConfig + `
telegram:
  enabled: true
`
	if _, err := Load(writeConfig(t, body)); err == nil || !strings.Contains(err.Error(), "telegram") {
		t.Fatalf("expected telegram validation error, got %v", err)
	}
}

func TestBucketWidthForOverride(t *testing.T) {
	body := minimalConfig + `
profile:
  bucket_width: 0.5
  bucket_widths:
    BTCUSDT: 50
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if w := cfg.BucketWidthFor("BTCUSDT"); w != 50 {
		t.Fatalf("BTCUSDT width = %v, want 50", w)
	}
	if w := cfg.BucketWidthFor("ETHUSDT"); w != 0.5 {
		t.Fatalf("ETHUSDT width = %v, want default 0.5", w)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", "SOLUSDT")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")

	cfg, err := LoadWithEnv(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load with env: %v", err)
	}
	if len(cfg.Market.Symbols) != 1 || cfg.Market.Symbols[0] != "SOLUSDT" {
		t.Fatalf("symbols = %v, want [SOLUSDT]", cfg.Market.Symbols)
	}
	if cfg.Telegram.Token != "tok" {
		t.Fatalf("telegram token not overridden")
	}
}
