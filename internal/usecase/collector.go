package usecase

import (
	"context"

	"TrendPulse/internal/domain/models"
	drepo "TrendPulse/internal/domain/repository"
	mid "TrendPulse/internal/middleware"
	applogger "TrendPulse/pkg/logger"
)

// TickCollector drives the market stream: connect, subscribe, consume, and
// reconnect on stream errors. Ticks flow through the pipeline into the
// processor.
type TickCollector struct {
	stream  drepo.MarketStream
	proc    *Processor
	pipe    *mid.TickPipeline
	logger  *applogger.Logger
	metrics drepo.Metrics
}

// NewTickCollector creates a collector.
func NewTickCollector(stream drepo.MarketStream, proc *Processor, pipe *mid.TickPipeline, l *applogger.Logger, m drepo.Metrics) *TickCollector {
	c := &TickCollector{stream: stream, proc: proc, pipe: pipe, logger: l, metrics: m}
	proc.SetStreaming(stream.IsConnected)
	return c
}

// IsConnected reports whether the market stream is connected.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes, and launches the consume loop.
func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	tickCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, tickCh, errCh)
	return nil
}

func (c *TickCollector) consume(ctx context.Context, tickCh <-chan *models.Tick, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil // read loop exited; wait for the error already seen
				continue
			}
			if err == nil {
				continue
			}
			c.metrics.RecordError("stream")
			c.logger.Warn("collector: stream error, reconnecting", applogger.Error(err))
			// Reconnect paces itself with the configured delay; keep trying
			// until it succeeds or we are told to stop.
			for {
				if ctx.Err() != nil {
					return
				}
				if rerr := c.stream.Reconnect(ctx); rerr != nil {
					c.metrics.RecordError("reconnect")
					c.logger.Error("collector: reconnect failed", applogger.Error(rerr))
					continue
				}
				break
			}
			// The old channels are dead after a reconnect.
			tickCh, errCh = c.stream.Read(ctx)
		case t, ok := <-tickCh:
			if !ok {
				tickCh = nil
				continue
			}
			if t == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, t)
			} else {
				_ = c.proc.Process(ctx, t)
			}
		}
	}
}

// Shutdown closes the stream.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	return c.stream.Close()
}
