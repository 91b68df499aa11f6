package notify

import (
	"context"
	"sync"

	"TrendPulse/internal/domain/models"
	drepo "TrendPulse/internal/domain/repository"
	applogger "TrendPulse/pkg/logger"
)

// Notifier fans emitted signals out to every registered sink from a single
// dispatch goroutine. Delivery is best-effort: a failing sink is logged and
// counted, never propagated back into the signal path.
type Notifier struct {
	sinks   []drepo.SignalSink
	logger  *applogger.Logger
	metrics drepo.Metrics

	in   chan *models.Signal
	wg   sync.WaitGroup
	once sync.Once
}

// NewNotifier creates a notifier over the given sinks.
func NewNotifier(sinks []drepo.SignalSink, l *applogger.Logger, m drepo.Metrics, buffer int) *Notifier {
	if buffer <= 0 {
		buffer = 64
	}
	return &Notifier{
		sinks:   sinks,
		logger:  l,
		metrics: m,
		in:      make(chan *models.Signal, buffer),
	}
}

// Start launches the dispatch loop. It drains the queue until ctx is
// cancelled or Close is called.
func (n *Notifier) Start(ctx context.Context) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-n.in:
				if !ok {
					return
				}
				n.dispatch(ctx, sig)
			}
		}
	}()
}

// Notify enqueues a signal for delivery. When the queue is full the signal is
// dropped rather than blocking the emitter.
func (n *Notifier) Notify(sig *models.Signal) {
	select {
	case n.in <- sig:
	default:
		n.logger.Warn("notify: queue full, dropping signal",
			applogger.String("symbol", sig.Symbol),
			applogger.String("kind", string(sig.Kind)),
		)
		n.metrics.RecordError("notify_queue_full")
	}
}

func (n *Notifier) dispatch(ctx context.Context, sig *models.Signal) {
	for _, sink := range n.sinks {
		if err := sink.Deliver(ctx, sig); err != nil {
			n.logger.Error("notify: delivery failed",
				applogger.String("symbol", sig.Symbol),
				applogger.String("kind", string(sig.Kind)),
				applogger.Error(err),
			)
			n.metrics.RecordError("notify_delivery")
		}
	}
}

// Close stops accepting signals and waits for in-flight deliveries.
func (n *Notifier) Close() {
	n.once.Do(func() { close(n.in) })
	n.wg.Wait()
}
