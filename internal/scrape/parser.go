// Package scrape fetches the bookmaker's promotions page and turns the
// rendered card list into normalized market quotes.
package scrape

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/boostwatch/boostwatch/internal/models"
)

// containerSelectors are tried in order; the first one yielding validated
// cards wins. The site reshuffles its markup periodically, hence the
// fallbacks.
var containerSelectors = []string{
	".pbb-PopularBetsList > div",
	".pbb-SuperBetBoost-parent",
	".pbb-PopularBet",
}

const (
	// A real promotion card carries a boost marker and at least one price.
	boostMarkerSelector = ".pbb-SuperBetBoost, .pbb-SuperBoostChevron"
	anyOddsSelector     = ".pbb-PopularBet_BoostedOdds, .pbb-PopularBet_Odds"

	eventSelector        = ".pbb-PopularBet_BetLine"
	marketSelector       = ".pbb-PopularBet_MarketName"
	selectionSelector    = ".pbb-PopularBet_Text"
	boostedOddsSelector  = ".pbb-PopularBet_BoostedOdds"
	previousOddsSelector = ".pbb-PopularBet_PreviousOdds"
	sportIconSelector    = "img.pbb-PopularBet_Icon"
)

// ParseOdds converts odds text as displayed on the page into a decimal
// price. The main site renders dot decimals while localized mirrors use
// commas, so both are accepted. Placeholder text means the price is not
// published yet.
func ParseOdds(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return 0, fmt.Errorf("empty odds text")
	case strings.EqualFold(s, "N/A"), strings.EqualFold(s, "N/D"), s == "-":
		return 0, fmt.Errorf("odds placeholder %q", raw)
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("malformed odds %q: %w", raw, err)
	}
	return v, nil
}

// Parser extracts promoted propositions from rendered page HTML.
type Parser struct {
	log zerolog.Logger
}

func NewParser(log zerolog.Logger) *Parser {
	return &Parser{log: log}
}

// Parse walks the recognized cards and returns one quote per well-formed
// card. Cards missing required fields are skipped with a warning and never
// abort the snapshot. A page with no recognizable cards is a valid empty
// snapshot, not an error.
func (p *Parser) Parse(html string, scrapedAt time.Time) ([]models.MarketQuote, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &SnapshotError{Stage: "parse", Err: err}
	}

	cards := findCards(doc)
	if len(cards) == 0 {
		p.log.Warn().Msg("no promotion cards recognized on page")
		return nil, nil
	}

	quotes := make([]models.MarketQuote, 0, len(cards))
	for _, card := range cards {
		q, err := p.extract(card, scrapedAt)
		if err != nil {
			p.log.Warn().Err(err).Msg("skipping malformed promotion card")
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

func findCards(doc *goquery.Document) []*goquery.Selection {
	for _, selector := range containerSelectors {
		var cards []*goquery.Selection
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if s.Find(boostMarkerSelector).Length() > 0 && s.Find(anyOddsSelector).Length() > 0 {
				cards = append(cards, s)
			}
		})
		if len(cards) > 0 {
			return cards
		}
	}
	return nil
}

func (p *Parser) extract(card *goquery.Selection, scrapedAt time.Time) (models.MarketQuote, error) {
	event := cleanText(card.Find(eventSelector).First().Text())
	market := cleanText(card.Find(marketSelector).First().Text())
	selection := cleanText(card.Find(selectionSelector).First().Text())
	if event == "" || market == "" || selection == "" {
		return models.MarketQuote{}, fmt.Errorf("card missing identity fields (event=%q market=%q selection=%q)",
			event, market, selection)
	}

	boosted, err := ParseOdds(card.Find(boostedOddsSelector).First().Text())
	if err != nil {
		return models.MarketQuote{}, fmt.Errorf("boosted odds: %w", err)
	}
	fair, err := ParseOdds(card.Find(previousOddsSelector).First().Text())
	if err != nil {
		return models.MarketQuote{}, fmt.Errorf("previous odds: %w", err)
	}

	var sport string
	if src, ok := card.Find(sportIconSelector).First().Attr("src"); ok {
		sport = models.SportFromIcon(src)
	}

	return models.MarketQuote{
		EventID:          event,
		MarketName:       market,
		SelectionName:    selection,
		BoostedOdds:      boosted,
		FairOddsEstimate: fair,
		Sport:            sport,
		ScrapedAt:        scrapedAt,
	}, nil
}

// cleanText collapses the whitespace runs goquery preserves from nested
// markup into single spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
