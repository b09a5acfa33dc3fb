// Package models defines the core domain entities: market quotes and the
// values derived from them.
package models

import (
	"errors"
	"time"
)

// MarketQuote represents one promoted-odds listing normalized from a scrape
// snapshot. Immutable once created: every poll cycle produces fresh quotes
// rather than mutating old ones.
type MarketQuote struct {
	EventID          string    `json:"event_id"`
	MarketName       string    `json:"market_name"`
	SelectionName    string    `json:"selection_name"`
	BoostedOdds      float64   `json:"boosted_odds"`
	FairOddsEstimate float64   `json:"fair_odds_estimate"`
	Sport            string    `json:"sport,omitempty"`
	ScrapedAt        time.Time `json:"scraped_at"`
}

// Validate checks quote field constraints. Odds semantics (breakeven
// bounds) are the evaluator's concern; this catches structurally broken
// records before they enter the pipeline.
func (q *MarketQuote) Validate() error {
	if q.EventID == "" {
		return errors.New("event ID must not be empty")
	}
	if q.MarketName == "" {
		return errors.New("market name must not be empty")
	}
	if q.SelectionName == "" {
		return errors.New("selection name must not be empty")
	}
	if q.BoostedOdds <= 0 {
		return errors.New("boosted odds must be positive")
	}
	if q.FairOddsEstimate <= 0 {
		return errors.New("fair odds estimate must be positive")
	}
	if q.ScrapedAt.IsZero() {
		return errors.New("scraped at must be set")
	}
	if q.ScrapedAt.After(time.Now().Add(time.Minute)) {
		return errors.New("scraped at must not be in the future")
	}
	return nil
}
