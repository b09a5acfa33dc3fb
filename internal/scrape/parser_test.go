package scrape

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const promotionsPage = `<html><body>
<div class="pbb-PopularBetsList">
  <div>
    <span class="pbb-SuperBetBoost"></span>
    <img class="pbb-PopularBet_Icon" src="/sports/icons/1.svg"/>
    <div class="pbb-PopularBet_BetLine">Inter v Milan</div>
    <div class="pbb-PopularBet_MarketName">Match Winner</div>
    <div class="pbb-PopularBet_Text">Inter
      to win</div>
    <span class="pbb-PopularBet_PreviousOdds">2.00</span>
    <span class="pbb-PopularBet_BoostedOdds">2,50</span>
  </div>
  <div>
    <span class="pbb-SuperBoostChevron"></span>
    <img class="pbb-PopularBet_Icon" src="/sports/icons/18.svg"/>
    <div class="pbb-PopularBet_BetLine">Lakers v Celtics</div>
    <div class="pbb-PopularBet_MarketName">Total Points</div>
    <div class="pbb-PopularBet_Text">Over 210.5</div>
    <span class="pbb-PopularBet_PreviousOdds">1.90</span>
    <span class="pbb-PopularBet_BoostedOdds">2.10</span>
  </div>
  <div>
    <span class="pbb-SuperBetBoost"></span>
    <div class="pbb-PopularBet_BetLine">Sinner v Alcaraz</div>
    <div class="pbb-PopularBet_MarketName">Winner</div>
    <div class="pbb-PopularBet_Text">Sinner</div>
    <span class="pbb-PopularBet_PreviousOdds">N/D</span>
    <span class="pbb-PopularBet_BoostedOdds">2.40</span>
  </div>
  <div class="pbb-Footer">unrelated page furniture</div>
</div>
</body></html>`

func TestParseWellFormedCards(t *testing.T) {
	at := time.Date(2025, time.March, 7, 12, 0, 0, 0, time.UTC)

	quotes, err := NewParser(zerolog.Nop()).Parse(promotionsPage, at)
	require.NoError(t, err)

	// The third card has a placeholder previous price and is skipped; the
	// footer block carries no boost marker and is never a card.
	require.Len(t, quotes, 2)

	q := quotes[0]
	assert.Equal(t, "Inter v Milan", q.EventID)
	assert.Equal(t, "Match Winner", q.MarketName)
	assert.Equal(t, "Inter to win", q.SelectionName) // whitespace collapsed
	assert.Equal(t, 2.5, q.BoostedOdds)              // comma decimal accepted
	assert.Equal(t, 2.0, q.FairOddsEstimate)
	assert.Equal(t, "Soccer", q.Sport)
	assert.Equal(t, at, q.ScrapedAt)

	assert.Equal(t, "Basketball", quotes[1].Sport)
	assert.Equal(t, 2.1, quotes[1].BoostedOdds)
}

func TestParseFallbackSelector(t *testing.T) {
	// No .pbb-PopularBetsList wrapper; cards only reachable through the
	// second container selector.
	page := `<html><body>
	<div class="pbb-SuperBetBoost-parent">
	  <span class="pbb-SuperBetBoost"></span>
	  <div class="pbb-PopularBet_BetLine">Inter v Milan</div>
	  <div class="pbb-PopularBet_MarketName">Match Winner</div>
	  <div class="pbb-PopularBet_Text">Inter to win</div>
	  <span class="pbb-PopularBet_PreviousOdds">2.00</span>
	  <span class="pbb-PopularBet_BoostedOdds">2.50</span>
	</div>
	</body></html>`

	quotes, err := NewParser(zerolog.Nop()).Parse(page, time.Now())
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "Inter v Milan", quotes[0].EventID)
}

func TestParseEmptyPage(t *testing.T) {
	quotes, err := NewParser(zerolog.Nop()).Parse("<html><body><p>maintenance</p></body></html>", time.Now())
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestParseCardMissingIdentitySkipped(t *testing.T) {
	page := `<html><body><div class="pbb-PopularBetsList">
	<div>
	  <span class="pbb-SuperBetBoost"></span>
	  <div class="pbb-PopularBet_MarketName">Match Winner</div>
	  <span class="pbb-PopularBet_PreviousOdds">2.00</span>
	  <span class="pbb-PopularBet_BoostedOdds">2.50</span>
	</div>
	</div></body></html>`

	quotes, err := NewParser(zerolog.Nop()).Parse(page, time.Now())
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestParseOdds(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{"2.50", 2.5, false},
		{"2,50", 2.5, false},
		{" 11,00 ", 11.0, false},
		{"3", 3.0, false},
		{"", 0, true},
		{"N/A", 0, true},
		{"n/d", 0, true},
		{"-", 0, true},
		{"abc", 0, true},
		{"2,5,0", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseOdds(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
