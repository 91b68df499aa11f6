package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksTotal         *prometheus.CounterVec
	candlesClosed      *prometheus.CounterVec
	orderingViolations *prometheus.CounterVec
	signalsEmitted     *prometheus.CounterVec
	circuitOpen        *prometheus.GaugeVec
	gatewayTokens      *prometheus.GaugeVec
	lastPrice          *prometheus.GaugeVec
	errorsTotal        *prometheus.CounterVec
	latency            *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendpulse_ticks_total",
				Help: "Total number of ticks accepted from the market feed",
			},
			[]string{"symbol"},
		),
		candlesClosed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendpulse_candles_closed_total",
				Help: "Total number of candles closed per symbol and timeframe",
			},
			[]string{"symbol", "timeframe"},
		),
		orderingViolations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendpulse_ordering_violations_total",
				Help: "Out-of-order or duplicate candles rejected",
			},
			[]string{"symbol", "timeframe"},
		),
		signalsEmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendpulse_signals_emitted_total",
				Help: "Trading signals emitted by kind",
			},
			[]string{"symbol", "kind"},
		),
		circuitOpen: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trendpulse_gateway_circuit_open",
				Help: "1 when the circuit for an endpoint class is open",
			},
			[]string{"endpoint_class"},
		),
		gatewayTokens: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trendpulse_gateway_tokens",
				Help: "Tokens currently available per endpoint class",
			},
			[]string{"endpoint_class"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trendpulse_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trendpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordTick counts an accepted tick.
func (r *Recorder) RecordTick(symbol string) {
	r.ticksTotal.WithLabelValues(symbol).Inc()
}

// RecordCandleClosed counts a closed candle.
func (r *Recorder) RecordCandleClosed(symbol, timeframe string) {
	r.candlesClosed.WithLabelValues(symbol, timeframe).Inc()
}

// RecordOrderingViolation counts a rejected out-of-order candle.
func (r *Recorder) RecordOrderingViolation(symbol, timeframe string) {
	r.orderingViolations.WithLabelValues(symbol, timeframe).Inc()
}

// RecordSignal counts an emitted signal.
func (r *Recorder) RecordSignal(symbol, kind string) {
	r.signalsEmitted.WithLabelValues(symbol, kind).Inc()
}

// RecordCircuitState sets the circuit gauge for an endpoint class.
func (r *Recorder) RecordCircuitState(endpointClass string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	r.circuitOpen.WithLabelValues(endpointClass).Set(v)
}

// RecordTokens sets the available-token gauge for an endpoint class.
func (r *Recorder) RecordTokens(endpointClass string, tokens float64) {
	r.gatewayTokens.WithLabelValues(endpointClass).Set(tokens)
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
