package fingerprint

import (
	"sort"
	"time"

	"github.com/boostwatch/boostwatch/internal/models"
)

// State is the alert-decision state of a tracked proposition.
type State int

const (
	StateUnseen State = iota
	StateFirstSeen
	StateNotified
	StateSuppressed
)

func (s State) String() string {
	switch s {
	case StateUnseen:
		return "unseen"
	case StateFirstSeen:
		return "first_seen"
	case StateNotified:
		return "notified"
	case StateSuppressed:
		return "suppressed_duplicate"
	default:
		return "unknown"
	}
}

// StateFromString parses a persisted state label. Unknown labels map to
// StateUnseen so that a corrupted mirror degrades to "treat as new".
func StateFromString(s string) State {
	switch s {
	case "first_seen":
		return StateFirstSeen
	case "notified":
		return StateNotified
	case "suppressed_duplicate":
		return StateSuppressed
	default:
		return StateUnseen
	}
}

// TrackedEntry is the per-proposition record owned by the Index. Created on
// first sighting, mutated on every subsequent one, never deleted during the
// process lifetime. Identity fields are carried so removal notices can name
// what disappeared.
type TrackedEntry struct {
	Fingerprint    Fingerprint
	EventID        string
	MarketName     string
	SelectionName  string
	Sport          string
	LastOdds       float64
	State          State
	Active         bool
	FirstSeenAt    time.Time
	LastSeenAt     time.Time
	LastNotifiedAt time.Time
	NotifyCount    int
}

// Index maps fingerprints to tracked entries. It is not safe for concurrent
// use: the watcher loop is the single writer, enforced by its sequential
// structure.
type Index struct {
	entries map[Fingerprint]*TrackedEntry
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[Fingerprint]*TrackedEntry)}
}

// Rehydrate seeds the index from persisted entries, typically at startup.
// Entries already present are overwritten.
func (ix *Index) Rehydrate(entries []*TrackedEntry) {
	for _, e := range entries {
		ix.entries[e.Fingerprint] = e
	}
}

// LookupOrCreate returns the entry for the quote's proposition, creating it
// on first sighting. The second return reports whether the entry is new.
func (ix *Index) LookupOrCreate(q models.MarketQuote) (*TrackedEntry, bool) {
	fp := FromQuote(q)
	if e, ok := ix.entries[fp]; ok {
		return e, false
	}
	e := &TrackedEntry{
		Fingerprint:   fp,
		EventID:       q.EventID,
		MarketName:    q.MarketName,
		SelectionName: q.SelectionName,
		Sport:         q.Sport,
		LastOdds:      q.BoostedOdds,
		State:         StateFirstSeen,
		Active:        true,
		FirstSeenAt:   q.ScrapedAt,
		LastSeenAt:    q.ScrapedAt,
	}
	ix.entries[fp] = e
	return e, true
}

// Update records a sighting: last odds, last seen (monotonically
// non-decreasing), and the active flag.
func (ix *Index) Update(e *TrackedEntry, q models.MarketQuote) {
	e.LastOdds = q.BoostedOdds
	if q.ScrapedAt.After(e.LastSeenAt) {
		e.LastSeenAt = q.ScrapedAt
	}
	if q.Sport != "" {
		e.Sport = q.Sport
	}
	e.Active = true
}

// Get returns the entry for a fingerprint, or nil.
func (ix *Index) Get(fp Fingerprint) *TrackedEntry {
	return ix.entries[fp]
}

// Len returns the number of tracked entries.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// MissingSince returns active entries last seen before cutoff: propositions
// that were being tracked but did not appear in the latest snapshot.
func (ix *Index) MissingSince(cutoff time.Time) []*TrackedEntry {
	var missing []*TrackedEntry
	for _, e := range ix.entries {
		if e.Active && e.LastSeenAt.Before(cutoff) {
			missing = append(missing, e)
		}
	}
	sort.Slice(missing, func(i, j int) bool {
		return missing[i].Fingerprint < missing[j].Fingerprint
	})
	return missing
}

// Entries returns all tracked entries ordered by fingerprint, for
// deterministic checkpointing.
func (ix *Index) Entries() []*TrackedEntry {
	all := make([]*TrackedEntry, 0, len(ix.entries))
	for _, e := range ix.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Fingerprint < all[j].Fingerprint
	})
	return all
}
