package stream

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostwatch/boostwatch/internal/alerting"
	"github.com/boostwatch/boostwatch/internal/fingerprint"
	"github.com/boostwatch/boostwatch/internal/models"
	"github.com/boostwatch/boostwatch/internal/oddsmath"
)

var publishedAt = time.Date(2025, time.March, 7, 12, 0, 0, 0, time.UTC)

func sampleDecision() alerting.Decision {
	q := models.MarketQuote{
		EventID:          "Inter v Milan",
		MarketName:       "Match Winner",
		SelectionName:    "Inter to win",
		BoostedOdds:      2.5,
		FairOddsEstimate: 2.0,
		Sport:            "Soccer",
		ScrapedAt:        publishedAt,
	}
	return alerting.Decision{
		Action: alerting.ActionNotify,
		Entry: &fingerprint.TrackedEntry{
			Fingerprint:   fingerprint.FromQuote(q),
			EventID:       q.EventID,
			MarketName:    q.MarketName,
			SelectionName: q.SelectionName,
			Sport:         q.Sport,
			LastOdds:      q.BoostedOdds,
		},
		Assessment: oddsmath.ValueAssessment{Quote: q, ExpectedValue: 0.25, IsValueBet: true},
	}
}

func expectedXAdd(t *testing.T, d alerting.Decision) *redis.XAddArgs {
	t.Helper()
	payload, err := json.Marshal(newEvent(d, publishedAt))
	require.NoError(t, err)
	return &redis.XAddArgs{
		Stream: "boostwatch.alerts",
		MaxLen: 1000,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(payload),
		},
	}
}

func newTestPublisher() (*Publisher, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	p := NewPublisher(db, "boostwatch.alerts", 1000)
	p.now = func() time.Time { return publishedAt }
	return p, mock
}

func TestPublishAppendsCappedEntry(t *testing.T) {
	p, mock := newTestPublisher()
	d := sampleDecision()

	mock.ExpectXAdd(expectedXAdd(t, d)).SetVal("1-1")

	require.NoError(t, p.Publish(context.Background(), d))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishSurfacesRedisError(t *testing.T) {
	p, mock := newTestPublisher()
	d := sampleDecision()

	mock.ExpectXAdd(expectedXAdd(t, d)).SetErr(errors.New("connection refused"))

	err := p.Publish(context.Background(), d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEventFromRemovalDecision(t *testing.T) {
	d := sampleDecision()
	d.Action = alerting.ActionRemove
	d.Assessment = oddsmath.ValueAssessment{} // removals carry no fresh quote

	ev := newEvent(d, publishedAt)

	assert.Equal(t, "remove", ev.Action)
	assert.Equal(t, "Inter v Milan", ev.EventID)
	assert.Equal(t, 2.5, ev.BoostedOdds) // last listed price from the entry
	assert.Zero(t, ev.FairOdds)
	assert.Equal(t, publishedAt, ev.EmittedAt)
}

func TestPing(t *testing.T) {
	p, mock := newTestPublisher()
	mock.ExpectPing().SetVal("PONG")

	require.NoError(t, p.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
