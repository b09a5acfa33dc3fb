// Package alerting owns the per-proposition decision rules: whether a
// sighting of a promoted price warrants a notification, a re-notification,
// or silence.
package alerting

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/boostwatch/boostwatch/internal/fingerprint"
	"github.com/boostwatch/boostwatch/internal/oddsmath"
)

// Action is the outcome of one sighting decision.
type Action int

const (
	ActionSuppress Action = iota
	ActionNotify
	ActionRenotify
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionSuppress:
		return "suppress"
	case ActionNotify:
		return "notify"
	case ActionRenotify:
		return "renotify"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Decision couples an action with the entry and assessment it was made on.
type Decision struct {
	Action     Action
	Entry      *fingerprint.TrackedEntry
	Assessment oddsmath.ValueAssessment
	IsNew      bool
	// PreviousOdds is the price on file before this sighting was applied,
	// captured here because the entry itself is already updated by the
	// time a sink formats the decision.
	PreviousOdds float64
}

// Config holds the re-notification knobs.
type Config struct {
	// RenotifyDeltaPct is the relative odds drift (0.05 = 5%) that
	// qualifies a live value bet for another alert.
	RenotifyDeltaPct float64
	// RenotifyMinInterval is the minimum time between alerts for the same
	// proposition.
	RenotifyMinInterval time.Duration
}

// DefaultConfig returns the stock re-notify thresholds.
func DefaultConfig() Config {
	return Config{
		RenotifyDeltaPct:    0.05,
		RenotifyMinInterval: 30 * time.Minute,
	}
}

// ShouldRenotify reports whether a previously notified proposition
// qualifies for another alert: the odds drifted beyond the configured
// delta, the bet is still value, and the minimum interval has elapsed.
// Pure function of the prior entry and the new sighting.
func (c Config) ShouldRenotify(e *fingerprint.TrackedEntry, a oddsmath.ValueAssessment, now time.Time) bool {
	if !a.IsValueBet {
		return false
	}
	if oddsmath.RelativeDrift(e.LastOdds, a.Quote.BoostedOdds) <= c.RenotifyDeltaPct {
		return false
	}
	return now.Sub(e.LastNotifiedAt) >= c.RenotifyMinInterval
}

// Machine applies the transition rules to tracked entries. It is driven
// only by the watcher loop; no internal locking.
type Machine struct {
	index  *fingerprint.Index
	config Config
	log    zerolog.Logger
}

// New creates a machine over the given index.
func New(index *fingerprint.Index, config Config, log zerolog.Logger) *Machine {
	return &Machine{index: index, config: config, log: log}
}

// Observe runs one assessed sighting through the transition rules, mutates
// the tracked entry accordingly, and returns the decision. The entry
// mutation and the decision are a single atomic step from the caller's
// point of view; sink failures afterwards must not roll it back.
func (m *Machine) Observe(a oddsmath.ValueAssessment, now time.Time) Decision {
	entry, isNew := m.index.LookupOrCreate(a.Quote)
	prior := entry.LastOdds
	action := m.decide(entry, isNew, a, now)
	m.apply(entry, action, a, now)

	if action != ActionSuppress {
		m.log.Debug().
			Str("fingerprint", string(entry.Fingerprint)).
			Str("event", entry.EventID).
			Str("action", action.String()).
			Float64("odds", a.Quote.BoostedOdds).
			Float64("ev", a.ExpectedValue).
			Int("notify_count", entry.NotifyCount).
			Msg("sighting decided")
	}

	return Decision{Action: action, Entry: entry, Assessment: a, IsNew: isNew, PreviousOdds: prior}
}

func (m *Machine) decide(entry *fingerprint.TrackedEntry, isNew bool, a oddsmath.ValueAssessment, now time.Time) Action {
	// First sighting, or a proposition returning after removal: fresh
	// decision, alert iff value.
	if isNew || !entry.Active {
		if a.IsValueBet {
			return ActionNotify
		}
		return ActionSuppress
	}
	if !a.IsValueBet {
		return ActionSuppress
	}
	// Tracked without ever alerting (first seen below threshold, price
	// has now crossed it): this is the user's first chance to hear of it.
	if entry.NotifyCount == 0 {
		return ActionNotify
	}
	if m.config.ShouldRenotify(entry, a, now) {
		return ActionRenotify
	}
	return ActionSuppress
}

func (m *Machine) apply(entry *fingerprint.TrackedEntry, action Action, a oddsmath.ValueAssessment, now time.Time) {
	switch action {
	case ActionNotify, ActionRenotify:
		entry.State = fingerprint.StateNotified
		entry.LastNotifiedAt = now
		entry.NotifyCount++
	case ActionSuppress:
		// A live value bet whose drift did not qualify stays NOTIFIED;
		// every other suppressed sighting lands in the duplicate state.
		if !(entry.State == fingerprint.StateNotified && a.IsValueBet) {
			entry.State = fingerprint.StateSuppressed
		}
	}
	m.index.Update(entry, a.Quote)
}

// ExpireMissing deactivates tracked propositions that were absent from the
// latest snapshot (last seen before cutoff). Propositions the user has been
// alerted about produce removal decisions; silently tracked ones are just
// deactivated.
func (m *Machine) ExpireMissing(cutoff time.Time) []Decision {
	var removed []Decision
	for _, e := range m.index.MissingSince(cutoff) {
		e.Active = false
		m.log.Debug().
			Str("fingerprint", string(e.Fingerprint)).
			Str("event", e.EventID).
			Int("notify_count", e.NotifyCount).
			Msg("proposition left the promotions page")
		if e.NotifyCount > 0 {
			removed = append(removed, Decision{Action: ActionRemove, Entry: e})
		}
	}
	return removed
}
