package fingerprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostwatch/boostwatch/internal/models"
)

func testQuote(at time.Time, odds float64) models.MarketQuote {
	return models.MarketQuote{
		EventID:          "Inter - Milan",
		MarketName:       "1X2",
		SelectionName:    "Home",
		BoostedOdds:      odds,
		FairOddsEstimate: 2.0,
		Sport:            "Soccer",
		ScrapedAt:        at,
	}
}

func TestLookupOrCreate(t *testing.T) {
	ix := NewIndex()
	now := time.Now()

	e, isNew := ix.LookupOrCreate(testQuote(now, 2.5))
	require.True(t, isNew)
	assert.Equal(t, StateFirstSeen, e.State)
	assert.Equal(t, 2.5, e.LastOdds)
	assert.Equal(t, now, e.FirstSeenAt)
	assert.Equal(t, now, e.LastSeenAt)
	assert.True(t, e.Active)
	assert.Zero(t, e.NotifyCount)
	assert.Equal(t, 1, ix.Len())

	again, isNew := ix.LookupOrCreate(testQuote(now.Add(time.Minute), 2.7))
	require.False(t, isNew)
	assert.Same(t, e, again, "same proposition must resolve to the same entry")
	assert.Equal(t, 1, ix.Len())
	// Lookup alone must not mutate: that is Update's job.
	assert.Equal(t, 2.5, again.LastOdds)
	assert.Equal(t, now, again.LastSeenAt)
}

func TestUpdateMutatesOddsAndSeen(t *testing.T) {
	ix := NewIndex()
	t0 := time.Now()

	e, _ := ix.LookupOrCreate(testQuote(t0, 2.5))
	ix.Update(e, testQuote(t0.Add(time.Minute), 2.8))

	assert.Equal(t, 2.8, e.LastOdds)
	assert.Equal(t, t0.Add(time.Minute), e.LastSeenAt)
	assert.Equal(t, t0, e.FirstSeenAt, "first seen never moves")
}

func TestUpdateLastSeenMonotonic(t *testing.T) {
	ix := NewIndex()
	t0 := time.Now()

	e, _ := ix.LookupOrCreate(testQuote(t0, 2.5))
	ix.Update(e, testQuote(t0.Add(2*time.Minute), 2.6))
	// A stale quote must not rewind last seen.
	ix.Update(e, testQuote(t0.Add(time.Minute), 2.4))

	assert.Equal(t, t0.Add(2*time.Minute), e.LastSeenAt)
	assert.Equal(t, 2.4, e.LastOdds)
}

func TestMissingSince(t *testing.T) {
	ix := NewIndex()
	t0 := time.Now()

	stale, _ := ix.LookupOrCreate(models.MarketQuote{
		EventID: "Old Event", MarketName: "1X2", SelectionName: "Away",
		BoostedOdds: 3.0, FairOddsEstimate: 2.5, ScrapedAt: t0,
	})
	fresh, _ := ix.LookupOrCreate(models.MarketQuote{
		EventID: "New Event", MarketName: "1X2", SelectionName: "Home",
		BoostedOdds: 2.2, FairOddsEstimate: 2.0, ScrapedAt: t0,
	})

	cutoff := t0.Add(time.Minute)
	ix.Update(fresh, models.MarketQuote{
		EventID: "New Event", MarketName: "1X2", SelectionName: "Home",
		BoostedOdds: 2.2, FairOddsEstimate: 2.0, ScrapedAt: cutoff.Add(time.Second),
	})

	missing := ix.MissingSince(cutoff)
	require.Len(t, missing, 1)
	assert.Same(t, stale, missing[0])

	// Inactive entries are not reported again.
	stale.Active = false
	assert.Empty(t, ix.MissingSince(cutoff))
}

func TestRehydrate(t *testing.T) {
	ix := NewIndex()
	t0 := time.Now().Add(-time.Hour)

	persisted := []*TrackedEntry{
		{
			Fingerprint: New("E1", "1X2", "Home"),
			EventID:     "E1", MarketName: "1X2", SelectionName: "Home",
			LastOdds: 2.5, State: StateNotified, Active: true,
			FirstSeenAt: t0, LastSeenAt: t0, LastNotifiedAt: t0, NotifyCount: 2,
		},
	}
	ix.Rehydrate(persisted)

	e, isNew := ix.LookupOrCreate(models.MarketQuote{
		EventID: "E1", MarketName: "1X2", SelectionName: "Home",
		BoostedOdds: 2.6, FairOddsEstimate: 2.0, ScrapedAt: time.Now(),
	})
	require.False(t, isNew, "rehydrated propositions are not new")
	assert.Equal(t, StateNotified, e.State)
	assert.Equal(t, 2, e.NotifyCount)
}

func TestEntriesDeterministicOrder(t *testing.T) {
	ix := NewIndex()
	now := time.Now()
	names := []string{"Zeta", "Alpha", "Mid"}
	for _, n := range names {
		ix.LookupOrCreate(models.MarketQuote{
			EventID: n, MarketName: "1X2", SelectionName: "Home",
			BoostedOdds: 2.0, FairOddsEstimate: 1.8, ScrapedAt: now,
		})
	}

	first := ix.Entries()
	second := ix.Entries()
	require.Len(t, first, 3)
	for i := range first {
		assert.Equal(t, first[i].Fingerprint, second[i].Fingerprint)
	}
	for i := 1; i < len(first); i++ {
		assert.Less(t, string(first[i-1].Fingerprint), string(first[i].Fingerprint))
	}
}

func TestStateRoundTrip(t *testing.T) {
	for _, s := range []State{StateUnseen, StateFirstSeen, StateNotified, StateSuppressed} {
		assert.Equal(t, s, StateFromString(s.String()))
	}
	assert.Equal(t, StateUnseen, StateFromString("garbage"))
}
