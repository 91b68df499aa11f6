package trend

import (
	"testing"
	"time"

	"TrendPulse/internal/domain/models"
	"TrendPulse/internal/domain/repository"
)

func state(dir models.Direction, strength float64) models.TrendState {
	return models.TrendState{
		Symbol:     "BTCUSDT",
		Direction:  dir,
		Strength:   strength,
		ComputedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCompositeRequiresMajority(t *testing.T) {
	a := NewAggregator("BTCUSDT", 2)
	a.Update(repository.TF1m, state(models.DirectionUp, 0.9))
	a.Update(repository.TF5m, state(models.DirectionDown, 0.9))
	a.Update(repository.TF15m, state(models.DirectionRange, 0))

	got := a.Composite()
	if got.Direction != models.DirectionRange || got.Confidence != 0 {
		t.Fatalf("disagreement must yield range/0, got %+v", got)
	}
}

func TestCompositeWeightsLongerTimeframesHigher(t *testing.T) {
	a := NewAggregator("BTCUSDT", 2)
	a.Update(repository.TF1m, state(models.DirectionDown, 1))
	a.Update(repository.TF15m, state(models.DirectionUp, 0.8))
	a.Update(repository.TF1h, state(models.DirectionUp, 0.8))

	got := a.Composite()
	if got.Direction != models.DirectionUp {
		t.Fatalf("direction %s, want up (15m+1h outweigh 1m)", got.Direction)
	}
	if got.Confidence <= 0 {
		t.Fatalf("expected positive confidence, got %v", got.Confidence)
	}
	if len(got.ContributingTimeframes) != 2 {
		t.Fatalf("contributing %v, want [15m 1h]", got.ContributingTimeframes)
	}
}

func TestCompositeMinAgreeingGate(t *testing.T) {
	a := NewAggregator("BTCUSDT", 3)
	a.Update(repository.TF15m, state(models.DirectionUp, 0.9))
	a.Update(repository.TF1h, state(models.DirectionUp, 0.9))

	got := a.Composite()
	if got.Direction != models.DirectionRange {
		t.Fatalf("two agreeing timeframes must not pass a min of three, got %+v", got)
	}
}

func TestCompositeIsDeterministic(t *testing.T) {
	a := NewAggregator("BTCUSDT", 2)
	a.Update(repository.TF1m, state(models.DirectionUp, 0.6))
	a.Update(repository.TF5m, state(models.DirectionUp, 0.7))
	a.Update(repository.TF15m, state(models.DirectionDown, 0.4))

	first := a.Composite()
	second := a.Composite()
	if first.Direction != second.Direction || first.Confidence != second.Confidence {
		t.Fatalf("recompute differs: %+v vs %+v", first, second)
	}
	if len(first.ContributingTimeframes) != len(second.ContributingTimeframes) {
		t.Fatalf("contributing sets differ")
	}
}

func TestCompositeDissentLowersConfidence(t *testing.T) {
	full := NewAggregator("BTCUSDT", 2)
	full.Update(repository.TF5m, state(models.DirectionUp, 0.8))
	full.Update(repository.TF15m, state(models.DirectionUp, 0.8))

	dissent := NewAggregator("BTCUSDT", 2)
	dissent.Update(repository.TF5m, state(models.DirectionUp, 0.8))
	dissent.Update(repository.TF15m, state(models.DirectionUp, 0.8))
	dissent.Update(repository.TF1m, state(models.DirectionDown, 0.8))

	if full.Composite().Confidence <= dissent.Composite().Confidence {
		t.Fatalf("dissenting timeframe must lower confidence: %v vs %v",
			full.Composite().Confidence, dissent.Composite().Confidence)
	}
}
