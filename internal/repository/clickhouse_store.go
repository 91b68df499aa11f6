package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"TrendPulse/internal/domain/models"
	domrepo "TrendPulse/internal/domain/repository"
	pkgch "TrendPulse/pkg/clickhouse"
	applogger "TrendPulse/pkg/logger"
)

// schema statements are idempotent; Init runs them on startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS candles (
		symbol    LowCardinality(String),
		timeframe LowCardinality(String),
		open_time DateTime64(3, 'UTC'),
		open      Float64,
		high      Float64,
		low       Float64,
		close     Float64,
		volume    Float64
	) ENGINE = ReplacingMergeTree
	ORDER BY (symbol, timeframe, open_time)`,

	`CREATE TABLE IF NOT EXISTS signals (
		symbol     LowCardinality(String),
		kind       LowCardinality(String),
		confidence Float64,
		price      Float64,
		emitted_at DateTime64(6, 'UTC'),
		detail     String
	) ENGINE = MergeTree
	ORDER BY (symbol, emitted_at)`,
}

// ClickHouseStore archives closed candles and emitted signals.
type ClickHouseStore struct {
	client *pkgch.Client
	db     *sql.DB
	logger *applogger.Logger
}

// NewClickHouseStore creates the store over a pooled client.
func NewClickHouseStore(client *pkgch.Client, l *applogger.Logger) domrepo.Storage {
	return &ClickHouseStore{client: client, db: client.DB(), logger: l}
}

// Init ensures the tables exist.
func (s *ClickHouseStore) Init(ctx context.Context) error {
	if err := s.client.InitSchema(ctx, schema); err != nil {
		return fmt.Errorf("clickhouse init: %w", err)
	}
	return nil
}

// StoreCandle archives one closed candle.
func (s *ClickHouseStore) StoreCandle(ctx context.Context, c *models.Candle) error {
	const q = `INSERT INTO candles (symbol, timeframe, open_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		c.Symbol, c.Timeframe, c.OpenTime,
		c.Open, c.High, c.Low, c.Close, c.Volume,
	)
	if err != nil {
		return fmt.Errorf("store candle: %w", err)
	}
	return nil
}

// signalDetail is the JSON payload persisted alongside the scalar columns so
// the full context of an emission can be audited later.
type signalDetail struct {
	Timeframes []string `json:"timeframes,omitempty"`
	POC        float64  `json:"poc,omitempty"`
	TotalVol   float64  `json:"total_volume,omitempty"`
}

// StoreSignal archives one emitted signal.
func (s *ClickHouseStore) StoreSignal(ctx context.Context, sig *models.Signal) error {
	var d signalDetail
	if sig.Trend != nil {
		d.Timeframes = sig.Trend.ContributingTimeframes
	}
	if sig.Profile != nil {
		d.POC = sig.Profile.PointOfControl.Low + sig.Profile.BucketWidth/2
		d.TotalVol = sig.Profile.TotalVolume
	}
	detail, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal signal detail: %w", err)
	}

	const q = `INSERT INTO signals (symbol, kind, confidence, price, emitted_at, detail)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		sig.Symbol, string(sig.Kind), sig.Confidence, sig.Price, sig.EmittedAt, string(detail),
	); err != nil {
		return fmt.Errorf("store signal: %w", err)
	}
	return nil
}

// RecentSignals reads back signals for one symbol, newest first.
func (s *ClickHouseStore) RecentSignals(ctx context.Context, symbol string, since time.Time, limit int) ([]*models.Signal, error) {
	start := time.Now()
	const q = `SELECT symbol, kind, confidence, price, emitted_at
		FROM signals
		WHERE symbol = ? AND emitted_at >= ?
		ORDER BY emitted_at DESC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, symbol, since, limit)
	if err != nil {
		s.logger.Error("clickhouse recent_signals query error",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("recent signals: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Signal, 0, limit)
	for rows.Next() {
		var sig models.Signal
		var kind string
		if err := rows.Scan(&sig.Symbol, &kind, &sig.Confidence, &sig.Price, &sig.EmittedAt); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Kind = models.SignalKind(kind)
		out = append(out, &sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.logger.Debug("clickhouse recent_signals ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("took", time.Since(start)),
	)
	return out, nil
}

// Health pings the pool.
func (s *ClickHouseStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// Close releases the pool.
func (s *ClickHouseStore) Close() error {
	return s.client.Close()
}
