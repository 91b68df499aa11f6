package repository

import (
	"context"

	"TrendPulse/internal/domain/models"
	domrepo "TrendPulse/internal/domain/repository"
	pkgkafka "TrendPulse/pkg/kafka"
)

// KafkaPublisher fans signals and candles out to their topics, keyed by
// symbol so each symbol's events stay ordered within a partition.
type KafkaPublisher struct {
	producer    *pkgkafka.Producer
	signalTopic string
	candleTopic string
}

// NewKafkaPublisher creates the publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, signalTopic, candleTopic string) domrepo.Publisher {
	return &KafkaPublisher{producer: producer, signalTopic: signalTopic, candleTopic: candleTopic}
}

func (p *KafkaPublisher) PublishSignal(ctx context.Context, s *models.Signal) error {
	payload := map[string]interface{}{
		"symbol":     s.Symbol,
		"kind":       string(s.Kind),
		"confidence": s.Confidence,
		"price":      s.Price,
		"emitted_at": s.EmittedAt.UnixMilli(),
	}
	if s.Trend != nil {
		payload["timeframes"] = s.Trend.ContributingTimeframes
	}
	return p.producer.Publish(ctx, p.signalTopic, []byte(s.Symbol), payload)
}

func (p *KafkaPublisher) PublishCandle(ctx context.Context, c *models.Candle) error {
	return p.producer.Publish(ctx, p.candleTopic, []byte(c.Symbol), map[string]interface{}{
		"symbol":    c.Symbol,
		"timeframe": c.Timeframe,
		"open_time": c.OpenTime.UnixMilli(),
		"o":         c.Open,
		"h":         c.High,
		"l":         c.Low,
		"c":         c.Close,
		"v":         c.Volume,
	})
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
