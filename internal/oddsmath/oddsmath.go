// Package oddsmath implements the expected-value arithmetic that classifies
// promoted odds against a fair-odds baseline. All functions are pure.
package oddsmath

import (
	"fmt"
	"math"

	"github.com/boostwatch/boostwatch/internal/models"
)

// InvalidOddsError reports a quote whose odds cannot produce a meaningful
// value signal: decimal odds at or below even-money breakeven.
type InvalidOddsError struct {
	Field string
	Value float64
}

func (e *InvalidOddsError) Error() string {
	return fmt.Sprintf("invalid odds: %s = %.3f must be greater than 1.0", e.Field, e.Value)
}

// ImpliedProbability converts decimal odds to implied probability.
// Decimal 2.00 → 0.50
func ImpliedProbability(odds float64) (float64, error) {
	if odds <= 0 {
		return 0, fmt.Errorf("invalid decimal odds: must be > 0")
	}
	return 1.0 / odds, nil
}

// ExpectedValue computes the edge of a boosted price over the fair price:
// boosted × (1/fair) − 1. Positive means the boost pays more than the
// estimated true probability warrants.
func ExpectedValue(boostedOdds, fairOdds float64) (float64, error) {
	if boostedOdds <= 1.0 {
		return 0, &InvalidOddsError{Field: "boosted_odds", Value: boostedOdds}
	}
	if fairOdds <= 1.0 {
		return 0, &InvalidOddsError{Field: "fair_odds_estimate", Value: fairOdds}
	}
	p, err := ImpliedProbability(fairOdds)
	if err != nil {
		return 0, err
	}
	return boostedOdds*p - 1.0, nil
}

// RelativeDrift returns |newOdds−oldOdds| / oldOdds, the relative odds
// change between two sightings of the same proposition. Zero when oldOdds
// is not positive.
func RelativeDrift(oldOdds, newOdds float64) float64 {
	if oldOdds <= 0 {
		return 0
	}
	return math.Abs(newOdds-oldOdds) / oldOdds
}

// ValueAssessment pairs a quote with its computed edge. Derived on every
// sighting, never persisted on its own.
type ValueAssessment struct {
	Quote         models.MarketQuote `json:"quote"`
	ExpectedValue float64            `json:"expected_value"`
	IsValueBet    bool               `json:"is_value_bet"`
}

// Evaluator classifies quotes against a configurable EV threshold.
type Evaluator struct {
	threshold float64
}

// NewEvaluator returns an evaluator that flags quotes whose expected value
// strictly exceeds threshold. The zero threshold flags any positive edge.
func NewEvaluator(threshold float64) Evaluator {
	return Evaluator{threshold: threshold}
}

// Evaluate computes the expected value of a quote. Returns an
// *InvalidOddsError when either odds value is at or below 1.0; such quotes
// must be skipped, never silently classified.
func (e Evaluator) Evaluate(q models.MarketQuote) (ValueAssessment, error) {
	ev, err := ExpectedValue(q.BoostedOdds, q.FairOddsEstimate)
	if err != nil {
		return ValueAssessment{}, err
	}
	return ValueAssessment{
		Quote:         q,
		ExpectedValue: ev,
		IsValueBet:    ev > e.threshold,
	}, nil
}
