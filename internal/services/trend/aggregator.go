package trend

import (
	"sort"
	"sync"
	"time"

	"TrendPulse/internal/domain/models"
	"TrendPulse/internal/domain/repository"
)

// Aggregator fuses the per-timeframe trend states of one symbol into a
// CompositeTrend. Longer timeframes carry proportionally more weight. A
// directional majority of at least MinAgreeing timeframes is required; with
// no majority the composite reads range with zero confidence. Confidence is
// the weight-normalized average strength of the agreeing timeframes — a pure
// function of the current states, no hidden history.
type Aggregator struct {
	symbol      string
	minAgreeing int

	mu     sync.RWMutex
	states map[repository.Timeframe]models.TrendState
}

// NewAggregator creates an aggregator for one symbol.
func NewAggregator(symbol string, minAgreeing int) *Aggregator {
	return &Aggregator{
		symbol:      symbol,
		minAgreeing: minAgreeing,
		states:      make(map[repository.Timeframe]models.TrendState),
	}
}

// Update records the latest state for a timeframe, superseding the previous
// one atomically.
func (a *Aggregator) Update(tf repository.Timeframe, state models.TrendState) {
	a.mu.Lock()
	a.states[tf] = state
	a.mu.Unlock()
}

// Composite recomputes the fused verdict from the current states.
func (a *Aggregator) Composite() models.CompositeTrend {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := models.CompositeTrend{
		Symbol:     a.symbol,
		Direction:  models.DirectionRange,
		ComputedAt: time.Now().UTC(),
	}
	if len(a.states) == 0 {
		return out
	}

	type vote struct {
		tf     repository.Timeframe
		weight float64
		state  models.TrendState
	}
	byDir := map[models.Direction][]vote{}
	var totalWeight float64
	for tf, st := range a.states {
		w := tf.Weight()
		totalWeight += w
		byDir[st.Direction] = append(byDir[st.Direction], vote{tf: tf, weight: w, state: st})
	}

	// Pick the directional camp with the greatest total weight; up/down only.
	var winner models.Direction
	var winnerWeight float64
	for _, dir := range []models.Direction{models.DirectionUp, models.DirectionDown} {
		var w float64
		for _, v := range byDir[dir] {
			w += v.weight
		}
		if w > winnerWeight {
			winner = dir
			winnerWeight = w
		}
	}
	if winner == "" || len(byDir[winner]) < a.minAgreeing {
		return out
	}
	// A camp must also outweigh the combined opposition, range included;
	// otherwise the timeframes disagree and confidence stays at zero.
	if winnerWeight*2 <= totalWeight {
		return out
	}

	votes := byDir[winner]
	var conf float64
	for _, v := range votes {
		conf += v.state.Strength * (v.weight / winnerWeight)
	}
	// Scale by the camp's share of the total weight so dissenting
	// timeframes pull confidence down.
	conf *= winnerWeight / totalWeight

	tfs := make([]string, 0, len(votes))
	for _, v := range votes {
		tfs = append(tfs, string(v.tf))
	}
	sort.Strings(tfs)

	out.Direction = winner
	out.Confidence = conf
	out.ContributingTimeframes = tfs
	return out
}
