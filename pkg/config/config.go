package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config collects every configuration leaf. Defaults come from `default`
// tags, structural checks from `validate` tags, and semantic checks from
// Validate(). Any failure here is fatal before a single worker starts.
type Config struct {
	Environment string `yaml:"environment" default:"dev" validate:"required"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`

	Market struct {
		Symbols    []string `yaml:"symbols" validate:"min=1,dive,required"`
		Timeframes []string `yaml:"timeframes" validate:"min=1"`

		Binance struct {
			WebSocketURL   string        `yaml:"websocket_url" default:"wss://fstream.binance.com/ws"`
			RESTBaseURL    string        `yaml:"rest_base_url" default:"https://fapi.binance.com"`
			APIKey         string        `yaml:"api_key"`
			ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"3s"`
			PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
			WarmupCandles  int           `yaml:"warmup_candles" default:"60"`
		} `yaml:"binance"`
	} `yaml:"market"`

	Pipeline struct {
		// MaxTicksPerSec caps forwarded ticks per symbol; held-back tick
		// volume is coalesced into the next forwarded tick. 0 disables.
		MaxTicksPerSec int `yaml:"max_ticks_per_sec" validate:"gte=0"`
	} `yaml:"pipeline"`

	Profile struct {
		BucketWidth  float64            `yaml:"bucket_width" default:"0.5" validate:"gt=0"`
		BucketWidths map[string]float64 `yaml:"bucket_widths"` // per-symbol override
		WindowSize   int                `yaml:"window_size" default:"48" validate:"gt=1"`
		HVNRatio     float64            `yaml:"hvn_ratio" default:"0.7" validate:"gt=0,lte=1"`
		LVNRatio     float64            `yaml:"lvn_ratio" default:"0.2" validate:"gte=0,lt=1"`
	} `yaml:"profile"`

	Trend struct {
		FastEMA        int     `yaml:"fast_ema" default:"20" validate:"gt=1"`
		SlowEMA        int     `yaml:"slow_ema" default:"50" validate:"gt=1"`
		RSIPeriod      int     `yaml:"rsi_period" default:"14" validate:"gt=1"`
		VolumeMA       int     `yaml:"volume_ma" default:"20" validate:"gt=1"`
		RSIUpperBound  float64 `yaml:"rsi_upper_bound" default:"65"`
		RSILowerBound  float64 `yaml:"rsi_lower_bound" default:"35"`
		MinAgreeing    int     `yaml:"min_agreeing" default:"2" validate:"gt=0"`
		ActionableConf float64 `yaml:"actionable_confidence" default:"0.6" validate:"gt=0,lte=1"`
	} `yaml:"trend"`

	Signal struct {
		NodeProximityBps float64       `yaml:"node_proximity_bps" default:"25" validate:"gt=0"`
		CooldownDwell    time.Duration `yaml:"cooldown_dwell" default:"30m"`
		CooldownCandles  int           `yaml:"cooldown_candles" default:"6" validate:"gt=0"`
		QueueSize        int           `yaml:"queue_size" default:"256" validate:"gt=0"`
	} `yaml:"signal"`

	Gateway struct {
		MaxAttempts      int           `yaml:"max_attempts" default:"5" validate:"gt=0"`
		BackoffMin       time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax       time.Duration `yaml:"backoff_max" default:"10s"`
		BreakerThreshold int           `yaml:"breaker_threshold" default:"8" validate:"gt=0"`
		BreakerCooldown  time.Duration `yaml:"breaker_cooldown" default:"1m"`
		Budgets          []RateBudget  `yaml:"budgets"`
	} `yaml:"gateway"`

	Telegram struct {
		Enabled bool   `yaml:"enabled"`
		Token   string `yaml:"token"`
		ChatID  string `yaml:"chat_id"`
	} `yaml:"telegram"`

	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		SignalTopic  string        `yaml:"signal_topic" default:"trendpulse.signals"`
		CandleTopic  string        `yaml:"candle_topic" default:"trendpulse.candles"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
		Async        bool          `yaml:"async" default:"true"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"trendpulse"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		AsyncInsert  bool          `yaml:"async_insert" default:"true"`
	} `yaml:"clickhouse"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Cache struct {
		SnapshotTTL time.Duration `yaml:"snapshot_ttl" default:"5s"`
	} `yaml:"cache"`
}

// RateBudget configures one gateway endpoint class.
type RateBudget struct {
	EndpointClass string  `yaml:"endpoint_class" validate:"required"`
	Capacity      float64 `yaml:"capacity" validate:"gt=0"`
	RefillPerSec  float64 `yaml:"refill_per_sec" validate:"gt=0"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Market.Binance.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Market.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
}

// Validate checks structural tags plus the semantic rules the tags cannot
// express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if len(c.Market.Timeframes) == 0 {
		return fmt.Errorf("market.timeframes cannot be empty")
	}
	seen := make(map[string]bool, len(c.Market.Timeframes))
	for _, tf := range c.Market.Timeframes {
		if seen[tf] {
			return fmt.Errorf("duplicate timeframe %q", tf)
		}
		seen[tf] = true
	}
	for sym, w := range c.Profile.BucketWidths {
		if w <= 0 {
			return fmt.Errorf("profile.bucket_widths[%s] must be positive, got %v", sym, w)
		}
	}
	if c.Profile.LVNRatio >= c.Profile.HVNRatio {
		return fmt.Errorf("profile.lvn_ratio (%v) must be below hvn_ratio (%v)", c.Profile.LVNRatio, c.Profile.HVNRatio)
	}
	if c.Trend.FastEMA >= c.Trend.SlowEMA {
		return fmt.Errorf("trend.fast_ema (%d) must be below slow_ema (%d)", c.Trend.FastEMA, c.Trend.SlowEMA)
	}
	if c.Trend.MinAgreeing > len(c.Market.Timeframes) {
		return fmt.Errorf("trend.min_agreeing (%d) exceeds configured timeframes (%d)", c.Trend.MinAgreeing, len(c.Market.Timeframes))
	}
	if c.Gateway.BackoffMin > c.Gateway.BackoffMax {
		return fmt.Errorf("gateway.backoff_min must not exceed backoff_max")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.token and telegram.chat_id are required when telegram is enabled")
	}
	return nil
}

// BucketWidthFor returns the per-symbol bucket width or the global default.
func (c *Config) BucketWidthFor(symbol string) float64 {
	if w, ok := c.Profile.BucketWidths[symbol]; ok {
		return w
	}
	return c.Profile.BucketWidth
}
