// Package fingerprint identifies bettable propositions across poll cycles
// and tracks their sighting state. A proposition is (event, market,
// selection); its odds are deliberately excluded from the digest so that a
// price change on a known proposition reads as an update, not a new event.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/boostwatch/boostwatch/internal/models"
)

// Fingerprint is the hex digest of a proposition's identity fields.
type Fingerprint string

// New computes the deterministic digest of a proposition. Same input across
// polls yields the same digest; any differing component yields a different
// one.
func New(eventID, marketName, selectionName string) Fingerprint {
	h := sha256.Sum256([]byte(eventID + "|" + marketName + "|" + selectionName))
	return Fingerprint(hex.EncodeToString(h[:16]))
}

// FromQuote computes the fingerprint of a quote's proposition.
func FromQuote(q models.MarketQuote) Fingerprint {
	return New(q.EventID, q.MarketName, q.SelectionName)
}
