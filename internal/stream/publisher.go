// Package stream fans emitted alerts out to a Redis stream for downstream
// consumers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/boostwatch/boostwatch/internal/alerting"
)

// Event is the JSON payload appended to the stream.
type Event struct {
	Action        string    `json:"action"`
	Fingerprint   string    `json:"fingerprint"`
	EventID       string    `json:"event_id"`
	MarketName    string    `json:"market_name"`
	SelectionName string    `json:"selection_name"`
	Sport         string    `json:"sport,omitempty"`
	BoostedOdds   float64   `json:"boosted_odds"`
	FairOdds      float64   `json:"fair_odds,omitempty"`
	ExpectedValue float64   `json:"expected_value"`
	EmittedAt     time.Time `json:"emitted_at"`
}

func newEvent(d alerting.Decision, at time.Time) Event {
	e := d.Entry
	ev := Event{
		Action:        d.Action.String(),
		Fingerprint:   string(e.Fingerprint),
		EventID:       e.EventID,
		MarketName:    e.MarketName,
		SelectionName: e.SelectionName,
		Sport:         e.Sport,
		BoostedOdds:   e.LastOdds,
		ExpectedValue: d.Assessment.ExpectedValue,
		EmittedAt:     at,
	}
	if q := d.Assessment.Quote; q.FairOddsEstimate > 0 {
		ev.FairOdds = q.FairOddsEstimate
	}
	return ev
}

// Publisher appends alert events to a capped Redis stream.
type Publisher struct {
	client *redis.Client
	stream string
	maxLen int64
	now    func() time.Time
}

func NewPublisher(client *redis.Client, stream string, maxLen int64) *Publisher {
	return &Publisher{client: client, stream: stream, maxLen: maxLen, now: time.Now}
}

// Ping verifies connectivity, used as a startup check.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Publish appends one decision to the stream, trimming it approximately to
// maxLen so fan-out never grows unbounded.
func (p *Publisher) Publish(ctx context.Context, d alerting.Decision) error {
	payload, err := json.Marshal(newEvent(d, p.now()))
	if err != nil {
		return fmt.Errorf("marshaling alert event: %w", err)
	}

	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(payload),
		},
	}).Err()
}
