// Package watcher drives the poll loop: scrape, evaluate, decide, deliver,
// checkpoint. One cycle completes before the next begins, which makes the
// loop the sole writer of the fingerprint index.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/boostwatch/boostwatch/internal/alerting"
	"github.com/boostwatch/boostwatch/internal/fingerprint"
	"github.com/boostwatch/boostwatch/internal/oddsmath"
	"github.com/boostwatch/boostwatch/internal/opsserver"
	"github.com/boostwatch/boostwatch/internal/scrape"
	"github.com/boostwatch/boostwatch/internal/storage"
)

// ErrTooManyFailures reports that the consecutive-failure cap was exceeded.
// The process exits with a distinct code on it so the supervisor can act.
var ErrTooManyFailures = errors.New("too many consecutive scrape failures")

// Notifier delivers alerts and operational messages to the chat channel.
type Notifier interface {
	SendAlert(d alerting.Decision) error
	SendError(cycleErr error) error
	SendRecovery(failureCount int) error
}

// History persists alert rows and index checkpoints.
type History interface {
	AddAlert(alert *storage.Alert) error
	SaveTrackedEntries(entries []*fingerprint.TrackedEntry) error
}

// Publisher fans emitted alerts out to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, d alerting.Decision) error
}

// Pinger signals external liveness monitoring after each completed cycle.
type Pinger interface {
	Enabled() bool
	Ping(ctx context.Context) error
}

// Config holds the poll loop knobs.
type Config struct {
	PollInterval           time.Duration
	PollJitterPct          float64
	MaxConsecutiveFailures int
	Backoff                Policy
	CheckpointInterval     int
}

// DefaultConfig returns the stock loop settings.
func DefaultConfig() Config {
	return Config{
		PollInterval:           2 * time.Minute,
		PollJitterPct:          0.1,
		MaxConsecutiveFailures: 10,
		Backoff:                Policy{Base: 30 * time.Second, Cap: 10 * time.Minute},
		CheckpointInterval:     5,
	}
}

// Deps are the collaborators driven by the loop. Notifier, Stream and
// Heartbeat may be nil when the corresponding sink is disabled; everything
// else is required.
type Deps struct {
	Source    scrape.Source
	Evaluator oddsmath.Evaluator
	Machine   *alerting.Machine
	Index     *fingerprint.Index
	History   History
	Notifier  Notifier
	Stream    Publisher
	Heartbeat Pinger
	Metrics   *opsserver.Metrics
}

// Watcher is the poll loop orchestrator.
type Watcher struct {
	deps Deps
	cfg  Config
	log  zerolog.Logger

	cycleCount          int
	consecutiveFailures int
	lastCycleNano       atomic.Int64

	now  func() time.Time
	rand func() float64
}

// New creates a watcher over the given collaborators.
func New(deps Deps, cfg Config, log zerolog.Logger) *Watcher {
	return &Watcher{
		deps: deps,
		cfg:  cfg,
		log:  log,
		now:  time.Now,
		rand: rand.Float64,
	}
}

// Run executes cycles until ctx is cancelled or the consecutive-failure cap
// is exceeded. The first cycle runs immediately. On graceful shutdown the
// in-flight cycle finishes and a final checkpoint is written.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info().
		Dur("poll_interval", w.cfg.PollInterval).
		Int("max_consecutive_failures", w.cfg.MaxConsecutiveFailures).
		Msg("watcher started")

	for {
		if err := w.cycle(ctx); err != nil {
			return err
		}

		timer := time.NewTimer(w.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			w.shutdown()
			return nil
		case <-timer.C:
		}
	}
}

// cycle runs one cycle and absorbs its outcome: failure accounting, ops
// notifications, heartbeat. Only an exceeded failure cap escapes as an
// error.
func (w *Watcher) cycle(ctx context.Context) error {
	report, err := w.runCycle(ctx)
	w.lastCycleNano.Store(w.now().UnixNano())

	if ctx.Err() != nil {
		// Cancellation mid-cycle is shutdown, not a scrape failure.
		return nil
	}

	if w.deps.Heartbeat != nil && w.deps.Heartbeat.Enabled() {
		if pingErr := w.deps.Heartbeat.Ping(ctx); pingErr != nil {
			w.log.Warn().Err(pingErr).Msg("heartbeat delivery failed")
		}
	}

	if err != nil {
		w.consecutiveFailures++
		w.deps.Metrics.ObserveCycle("failure", report.Duration)
		w.deps.Metrics.SetConsecutiveFailures(w.consecutiveFailures)
		w.log.Error().Err(err).
			Int("consecutive_failures", w.consecutiveFailures).
			Msg("watch cycle failed")

		if w.consecutiveFailures == 1 && w.deps.Notifier != nil {
			if sendErr := w.deps.Notifier.SendError(err); sendErr != nil {
				w.log.Warn().Err(sendErr).Msg("failed to send error notification")
			}
		}
		if w.consecutiveFailures >= w.cfg.MaxConsecutiveFailures {
			return fmt.Errorf("%w: %d cycles", ErrTooManyFailures, w.consecutiveFailures)
		}
		return nil
	}

	if w.consecutiveFailures > 0 && w.deps.Notifier != nil {
		if sendErr := w.deps.Notifier.SendRecovery(w.consecutiveFailures); sendErr != nil {
			w.log.Warn().Err(sendErr).Msg("failed to send recovery notification")
		}
	}
	w.consecutiveFailures = 0
	w.deps.Metrics.ObserveCycle("success", report.Duration)
	w.deps.Metrics.SetConsecutiveFailures(0)
	w.deps.Metrics.SetTrackedEntries(w.deps.Index.Len())
	return nil
}

func (w *Watcher) runCycle(ctx context.Context) (Report, error) {
	start := w.now()
	w.log.Debug().Msg("starting watch cycle")

	quotes, err := w.deps.Source.Snapshot(ctx)
	if err != nil {
		return Report{Duration: w.now().Sub(start)}, err
	}

	report := Report{Quotes: len(quotes)}
	for i := range quotes {
		q := quotes[i]
		if err := q.Validate(); err != nil {
			report.Invalid++
			w.log.Warn().Err(err).Str("event", q.EventID).Msg("dropping malformed quote")
			continue
		}

		assessment, err := w.deps.Evaluator.Evaluate(q)
		if err != nil {
			// Data fault in a single quote; the cycle continues.
			report.Invalid++
			w.log.Warn().Err(err).
				Str("event", q.EventID).
				Float64("boosted", q.BoostedOdds).
				Msg("dropping quote with unusable odds")
			continue
		}
		if assessment.IsValueBet {
			report.ValueBets++
		}

		decision := w.deps.Machine.Observe(assessment, w.now())
		switch decision.Action {
		case alerting.ActionNotify:
			report.Notified++
		case alerting.ActionRenotify:
			report.Renotified++
		default:
			report.Suppressed++
		}
		if decision.Action != alerting.ActionSuppress {
			w.deliver(ctx, decision)
		}
	}

	for _, d := range w.deps.Machine.ExpireMissing(start) {
		report.Removed++
		w.deliver(ctx, d)
	}

	w.cycleCount++
	if w.cfg.CheckpointInterval > 0 && w.cycleCount%w.cfg.CheckpointInterval == 0 {
		w.checkpoint()
	}

	report.Duration = w.now().Sub(start)
	w.deps.Metrics.RecordQuotes(report.Quotes, report.Invalid)
	w.log.Info().
		Int("quotes", report.Quotes).
		Int("invalid", report.Invalid).
		Int("value_bets", report.ValueBets).
		Int("notified", report.Notified).
		Int("renotified", report.Renotified).
		Int("removed", report.Removed).
		Dur("duration", report.Duration).
		Msg("watch cycle completed")
	return report, nil
}

// deliver pushes one decision to every configured sink. Sinks are
// independent: a failure is logged and counted, never propagated, and never
// rolls back the state transition already applied.
func (w *Watcher) deliver(ctx context.Context, d alerting.Decision) {
	w.deps.Metrics.RecordAlert(d.Action.String())

	if w.deps.Notifier != nil {
		if err := w.deps.Notifier.SendAlert(d); err != nil {
			w.deps.Metrics.RecordSinkError("telegram")
			w.log.Error().Err(err).
				Str("fingerprint", string(d.Entry.Fingerprint)).
				Msg("notifier delivery failed")
		}
	}

	if err := w.deps.History.AddAlert(historyRow(d)); err != nil {
		w.deps.Metrics.RecordSinkError("storage")
		w.log.Error().Err(err).
			Str("fingerprint", string(d.Entry.Fingerprint)).
			Msg("history append failed")
	}

	if w.deps.Stream != nil {
		if err := w.deps.Stream.Publish(ctx, d); err != nil {
			w.deps.Metrics.RecordSinkError("stream")
			w.log.Error().Err(err).
				Str("fingerprint", string(d.Entry.Fingerprint)).
				Msg("stream publish failed")
		}
	}
}

// historyRow flattens a decision into its persisted form. Removal decisions
// carry no assessment; identity and last price come from the tracked entry.
func historyRow(d alerting.Decision) *storage.Alert {
	a := &storage.Alert{
		Fingerprint:   string(d.Entry.Fingerprint),
		EventID:       d.Entry.EventID,
		MarketName:    d.Entry.MarketName,
		SelectionName: d.Entry.SelectionName,
		Sport:         d.Entry.Sport,
		BoostedOdds:   d.Entry.LastOdds,
		Action:        d.Action.String(),
	}
	if d.Action != alerting.ActionRemove {
		a.BoostedOdds = d.Assessment.Quote.BoostedOdds
		a.FairOdds = d.Assessment.Quote.FairOddsEstimate
		a.ExpectedValue = d.Assessment.ExpectedValue
	}
	return a
}

func (w *Watcher) checkpoint() {
	entries := w.deps.Index.Entries()
	if err := w.deps.History.SaveTrackedEntries(entries); err != nil {
		w.deps.Metrics.RecordSinkError("storage")
		w.log.Warn().Err(err).Int("entries", len(entries)).Msg("checkpoint failed")
		return
	}
	w.log.Debug().Int("entries", len(entries)).Msg("index checkpointed")
}

func (w *Watcher) shutdown() {
	w.log.Info().Int("entries", w.deps.Index.Len()).Msg("checkpointing before shutdown")
	w.checkpoint()
}

func (w *Watcher) nextDelay() time.Duration {
	if w.consecutiveFailures > 0 {
		d := w.cfg.Backoff.Delay(w.consecutiveFailures)
		w.log.Info().
			Dur("delay", d).
			Int("consecutive_failures", w.consecutiveFailures).
			Msg("backing off before next cycle")
		return d
	}
	return w.jitteredInterval()
}

// jitteredInterval spreads poll times so the scraper does not hit the page
// on an exact clock grid.
func (w *Watcher) jitteredInterval() time.Duration {
	if w.cfg.PollJitterPct <= 0 {
		return w.cfg.PollInterval
	}
	spread := (w.rand()*2 - 1) * w.cfg.PollJitterPct
	return time.Duration(float64(w.cfg.PollInterval) * (1 + spread))
}

// Health reports liveness for the ops endpoint: healthy while cycles keep
// completing. Before the first completed cycle the watcher counts as still
// starting, which is healthy.
func (w *Watcher) Health(_ context.Context) error {
	last := w.lastCycleNano.Load()
	if last == 0 {
		return nil
	}
	elapsed := w.now().Sub(time.Unix(0, last))
	maxGap := 2*w.cfg.PollInterval + w.cfg.Backoff.Cap
	if elapsed > maxGap {
		return fmt.Errorf("no cycle completed in %s", elapsed.Round(time.Second))
	}
	return nil
}
