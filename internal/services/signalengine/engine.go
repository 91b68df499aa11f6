package signalengine

import (
	"math"
	"sync"
	"time"

	"TrendPulse/internal/domain/models"
)

// State is the per-symbol position in the firing cycle.
type State string

const (
	StateIdle     State = "idle"
	StateArmed    State = "armed"
	StateCooldown State = "cooldown"
)

// Config carries the firing policy.
type Config struct {
	// ActionableConfidence is the composite-trend confidence needed to arm.
	ActionableConfidence float64
	// NodeProximityBps is how close (in basis points) the close must be to a
	// high-volume node for confirmation.
	NodeProximityBps float64
	// CooldownDwell and CooldownCandles bound the cooldown: it ends after the
	// dwell duration or after that many evaluations, whichever comes first.
	CooldownDwell   time.Duration
	CooldownCandles int
}

// Engine is the per-symbol signal state machine:
//
//	Idle -> Armed    confidence crosses the actionable threshold while price
//	                 sits near a high-volume node
//	Armed -> Fired   the same-direction confirmation persists on the next
//	                 evaluation (debounce against single-bar noise)
//	Armed -> Idle    contrary confirmation, lost confirmation, or a
//	                 simultaneous up/down conflict
//	Fired -> Cooldown immediately after emitting exactly one Signal
//	Cooldown -> Idle after the dwell time or candle count elapses
//
// Evaluations are serialized by the per-symbol coordinator; the engine also
// guards its state so snapshots can be read concurrently.
type Engine struct {
	symbol string
	cfg    Config

	mu             sync.Mutex
	state          State
	armedKind      models.SignalKind
	cooldownUntil  time.Time
	cooldownCloses int
	lastEmittedAt  time.Time
}

// New creates a signal engine for one symbol.
func New(symbol string, cfg Config) *Engine {
	return &Engine{
		symbol: symbol,
		cfg:    cfg,
		state:  StateIdle,
	}
}

// State returns the current machine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Evaluate runs one step of the state machine on a candle close. profile and
// trend are the current snapshots for the symbol; either may be nil while
// windows are unfilled, which keeps the symbol in Idle. now is the closing
// candle's time so the machine is deterministic under replay.
//
// The returned Signal is non-nil exactly when the machine fires.
func (e *Engine) Evaluate(now time.Time, closePrice float64, profile *models.VolumeProfile, trend *models.CompositeTrend) *models.Signal {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateCooldown {
		e.cooldownCloses--
		if e.cooldownCloses <= 0 || !now.Before(e.cooldownUntil) {
			e.state = StateIdle
		} else {
			return nil
		}
	}

	confirmed, kind := e.confirmation(closePrice, profile, trend)

	switch e.state {
	case StateIdle:
		if confirmed {
			e.state = StateArmed
			e.armedKind = kind
		}
		return nil

	case StateArmed:
		if !confirmed || kind != e.armedKind {
			// Contrary or lost confirmation cancels without firing.
			e.state = StateIdle
			return nil
		}
		sig := &models.Signal{
			Symbol:     e.symbol,
			Kind:       kind,
			Confidence: trend.Confidence,
			Price:      closePrice,
			Profile:    profile,
			Trend:      trend,
			EmittedAt:  e.monotonic(now),
		}
		e.state = StateCooldown
		e.cooldownUntil = now.Add(e.cfg.CooldownDwell)
		e.cooldownCloses = e.cfg.CooldownCandles
		return sig
	}
	return nil
}

// confirmation checks the arm/fire condition: actionable composite
// confidence with the close sitting near a high-volume node. A conflicting
// read (directional trend while the profile window is unfilled, or a range
// verdict) never confirms.
func (e *Engine) confirmation(closePrice float64, profile *models.VolumeProfile, trend *models.CompositeTrend) (bool, models.SignalKind) {
	if profile == nil || trend == nil {
		return false, ""
	}
	if trend.Confidence < e.cfg.ActionableConfidence {
		return false, ""
	}

	var kind models.SignalKind
	switch trend.Direction {
	case models.DirectionUp:
		kind = models.SignalBuy
	case models.DirectionDown:
		kind = models.SignalSell
	default:
		return false, ""
	}

	if !e.nearHighVolumeNode(closePrice, profile) {
		return false, ""
	}
	return true, kind
}

func (e *Engine) nearHighVolumeNode(closePrice float64, profile *models.VolumeProfile) bool {
	if closePrice <= 0 {
		return false
	}
	tolerance := closePrice * e.cfg.NodeProximityBps / 10000
	for _, node := range profile.HighVolumeNodes {
		center := node.Low + profile.BucketWidth/2
		if math.Abs(closePrice-center) <= tolerance+profile.BucketWidth/2 {
			return true
		}
	}
	return false
}

// monotonic guarantees strictly increasing emission times per symbol even if
// two evaluations carry the same candle time.
func (e *Engine) monotonic(now time.Time) time.Time {
	if !now.After(e.lastEmittedAt) {
		now = e.lastEmittedAt.Add(time.Nanosecond)
	}
	e.lastEmittedAt = now
	return now
}
