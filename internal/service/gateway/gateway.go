package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"TrendPulse/internal/domain/models"
	drepo "TrendPulse/internal/domain/repository"
	applogger "TrendPulse/pkg/logger"
)

// Budget is the token-bucket shape for one endpoint class.
type Budget struct {
	Capacity     float64
	RefillPerSec float64
}

// Config carries the retry and circuit policy shared by all endpoint classes.
type Config struct {
	MaxAttempts      int
	BackoffMin       time.Duration
	BackoffMax       time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
	Budgets          map[string]Budget
	DefaultBudget    Budget
}

// Gateway throttles and supervises all outbound exchange calls. Each
// endpoint class owns a token bucket, a consecutive-failure counter, and a
// circuit. Callers block until a token is available, then the wrapped call
// runs with bounded retries; transient failures back off exponentially with
// jitter, permanent failures surface immediately. Enough consecutive
// transient failures open the circuit: calls fail fast with
// models.ErrCircuitOpen until the cooldown elapses, after which one trial
// call probes the upstream.
type Gateway struct {
	cfg     Config
	logger  *applogger.Logger
	metrics drepo.Metrics

	mu      sync.Mutex
	classes map[string]*endpointState
}

// endpointState is all shared mutable state for one endpoint class; every
// access goes through its own mutex so concurrent callers never lose a
// refill or double-spend a token.
type endpointState struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64
	last       time.Time

	failures  int
	openUntil time.Time
	probing   bool
}

// New creates a gateway.
func New(cfg Config, l *applogger.Logger, m drepo.Metrics) *Gateway {
	if cfg.DefaultBudget.Capacity <= 0 {
		cfg.DefaultBudget = Budget{Capacity: 5, RefillPerSec: 1}
	}
	return &Gateway{
		cfg:     cfg,
		logger:  l,
		metrics: m,
		classes: make(map[string]*endpointState),
	}
}

// Call runs fn under the endpoint class's rate budget and circuit.
func (g *Gateway) Call(ctx context.Context, endpointClass string, fn func(context.Context) error) error {
	st := g.class(endpointClass)

	probe, err := g.checkCircuit(st, endpointClass)
	if err != nil {
		return err
	}
	if err := g.acquire(ctx, st, endpointClass); err != nil {
		if probe {
			st.mu.Lock()
			st.probing = false
			st.mu.Unlock()
		}
		return err
	}

	if probe {
		// Whatever path the trial takes, the slot must be released.
		defer func() {
			st.mu.Lock()
			st.probing = false
			st.mu.Unlock()
		}()
	}

	var lastErr error
	backoff := g.cfg.BackoffMin
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			g.onSuccess(st, endpointClass)
			return nil
		}
		if errors.Is(err, models.ErrUpstreamPermanent) || ctx.Err() != nil {
			// Not retryable; does not count toward the breaker.
			return err
		}

		lastErr = err
		if opened := g.onFailure(st, endpointClass); opened {
			return fmt.Errorf("%w: %s after %d consecutive failures: %v",
				models.ErrCircuitOpen, endpointClass, g.cfg.BreakerThreshold, err)
		}
		if attempt == g.cfg.MaxAttempts {
			break
		}

		// Exponential backoff with jitter: half fixed, half random.
		sleep := backoff/2 + time.Duration(rand.Int63n(int64(backoff/2)+1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		backoff *= 2
		if backoff > g.cfg.BackoffMax {
			backoff = g.cfg.BackoffMax
		}
	}
	return fmt.Errorf("%s: attempts exhausted: %w", endpointClass, lastErr)
}

func (g *Gateway) class(name string) *endpointState {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.classes[name]
	if !ok {
		b, found := g.cfg.Budgets[name]
		if !found {
			b = g.cfg.DefaultBudget
		}
		st = &endpointState{
			tokens:     b.Capacity,
			capacity:   b.Capacity,
			refillRate: b.RefillPerSec,
			last:       time.Now(),
		}
		g.classes[name] = st
	}
	return st
}

// checkCircuit fails fast while the circuit is open. Once the cooldown has
// elapsed it grants the half-open trial slot to exactly one caller.
func (g *Gateway) checkCircuit(st *endpointState, class string) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.openUntil.IsZero() {
		return false, nil
	}
	if time.Now().Before(st.openUntil) {
		return false, fmt.Errorf("%w: %s until %s", models.ErrCircuitOpen, class, st.openUntil.UTC().Format(time.RFC3339))
	}
	if st.probing {
		return false, fmt.Errorf("%w: %s half-open probe in flight", models.ErrCircuitOpen, class)
	}
	st.probing = true
	return true, nil
}

// acquire blocks until a token is available or ctx is cancelled.
func (g *Gateway) acquire(ctx context.Context, st *endpointState, class string) error {
	for {
		st.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(st.last).Seconds()
		if elapsed > 0 {
			st.tokens += elapsed * st.refillRate
			if st.tokens > st.capacity {
				st.tokens = st.capacity
			}
			st.last = now
		}
		if st.tokens >= 1 {
			st.tokens--
			g.metrics.RecordTokens(class, st.tokens)
			st.mu.Unlock()
			return nil
		}
		deficit := 1 - st.tokens
		st.mu.Unlock()

		wait := time.Duration(deficit / st.refillRate * float64(time.Second))
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (g *Gateway) onSuccess(st *endpointState, class string) {
	st.mu.Lock()
	wasOpen := !st.openUntil.IsZero()
	st.failures = 0
	st.openUntil = time.Time{}
	st.probing = false
	st.mu.Unlock()

	if wasOpen {
		g.logger.Info("circuit closed", applogger.String("endpoint_class", class))
		g.metrics.RecordCircuitState(class, false)
	}
}

// onFailure counts a transient failure and reports whether it opened the
// circuit.
func (g *Gateway) onFailure(st *endpointState, class string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.failures++
	if st.probing {
		// Failed half-open probe re-opens immediately.
		st.openUntil = time.Now().Add(g.cfg.BreakerCooldown)
		st.probing = false
		g.metrics.RecordCircuitState(class, true)
		return true
	}
	if st.failures >= g.cfg.BreakerThreshold {
		st.openUntil = time.Now().Add(g.cfg.BreakerCooldown)
		g.logger.Warn("circuit opened",
			applogger.String("endpoint_class", class),
			applogger.Int("failures", st.failures),
			applogger.Duration("cooldown", g.cfg.BreakerCooldown),
		)
		g.metrics.RecordCircuitState(class, true)
		return true
	}
	return false
}

// Open reports whether the endpoint class is currently shedding load.
func (g *Gateway) Open(endpointClass string) bool {
	st := g.class(endpointClass)
	st.mu.Lock()
	defer st.mu.Unlock()
	return !st.openUntil.IsZero() && time.Now().Before(st.openUntil)
}
