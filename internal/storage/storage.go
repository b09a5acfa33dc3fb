// Package storage provides SQLite-backed persistence for alert history and
// tracked-entry checkpoints.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/boostwatch/boostwatch/internal/fingerprint"
)

// Alert is one emitted notification, as persisted to history.
type Alert struct {
	ID            string
	Fingerprint   string
	EventID       string
	MarketName    string
	SelectionName string
	Sport         string
	BoostedOdds   float64
	FairOdds      float64
	ExpectedValue float64
	Action        string
	CreatedAt     time.Time
}

// Store wraps a SQLite database for all persistence operations.
type Store struct {
	db         *sql.DB
	maxHistory int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/boostwatch/data.db.
func New(maxHistory int, dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "boostwatch", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Store{db: db, maxHistory: maxHistory}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tracked_entries (
			fingerprint      TEXT PRIMARY KEY,
			event_id         TEXT NOT NULL,
			market_name      TEXT NOT NULL,
			selection_name   TEXT NOT NULL,
			sport            TEXT,
			last_odds        REAL NOT NULL,
			state            TEXT NOT NULL,
			active           INTEGER NOT NULL,
			first_seen_at    INTEGER NOT NULL,
			last_seen_at     INTEGER NOT NULL,
			last_notified_at INTEGER NOT NULL,
			notify_count     INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id             TEXT PRIMARY KEY,
			fingerprint    TEXT NOT NULL,
			event_id       TEXT NOT NULL,
			market_name    TEXT NOT NULL,
			selection_name TEXT NOT NULL,
			sport          TEXT,
			boosted_odds   REAL NOT NULL,
			fair_odds      REAL NOT NULL,
			expected_value REAL NOT NULL,
			action         TEXT NOT NULL,
			created_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_fingerprint ON alerts(fingerprint)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveTrackedEntries checkpoints the fingerprint index. Existing rows are
// replaced wholesale; entries are never deleted here, matching the index's
// never-forget contract.
func (s *Store) SaveTrackedEntries(entries []*fingerprint.TrackedEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO tracked_entries (` + entryCols + `)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare checkpoint statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(
			string(e.Fingerprint), e.EventID, e.MarketName, e.SelectionName, e.Sport,
			e.LastOdds, e.State.String(), boolToInt(e.Active),
			timeToNano(e.FirstSeenAt), timeToNano(e.LastSeenAt), timeToNano(e.LastNotifiedAt),
			e.NotifyCount,
		); err != nil {
			return fmt.Errorf("failed to checkpoint entry %s: %w", e.Fingerprint, err)
		}
	}
	return tx.Commit()
}

// LoadTrackedEntries returns every checkpointed entry for startup
// rehydration.
func (s *Store) LoadTrackedEntries() ([]*fingerprint.TrackedEntry, error) {
	rows, err := s.db.Query(`SELECT ` + entryCols + ` FROM tracked_entries`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked entries: %w", err)
	}
	defer rows.Close()

	var entries []*fingerprint.TrackedEntry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tracked entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddAlert appends one notification to history and enforces the retention
// cap in the same transaction.
func (s *Store) AddAlert(alert *Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO alerts (`+alertCols+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		alert.ID, alert.Fingerprint, alert.EventID, alert.MarketName, alert.SelectionName,
		alert.Sport, alert.BoostedOdds, alert.FairOdds, alert.ExpectedValue,
		alert.Action, timeToNano(alert.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	if _, err = tx.Exec(`
		DELETE FROM alerts WHERE id NOT IN (
			SELECT id FROM alerts ORDER BY created_at DESC LIMIT ?
		)`, s.maxHistory); err != nil {
		return fmt.Errorf("failed to enforce history cap: %w", err)
	}

	return tx.Commit()
}

// RecentAlerts returns the newest alerts, most recent first.
func (s *Store) RecentAlerts(limit int) ([]Alert, error) {
	rows, err := s.db.Query(`
		SELECT `+alertCols+` FROM alerts
		ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		a, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

const entryCols = `fingerprint, event_id, market_name, selection_name, sport,
	last_odds, state, active, first_seen_at, last_seen_at, last_notified_at, notify_count`

const alertCols = `id, fingerprint, event_id, market_name, selection_name, sport,
	boosted_odds, fair_odds, expected_value, action, created_at`

func scanEntry(scan func(...any) error) (*fingerprint.TrackedEntry, error) {
	var e fingerprint.TrackedEntry
	var fp, state string
	var active int
	var firstSeen, lastSeen, lastNotified int64
	err := scan(
		&fp, &e.EventID, &e.MarketName, &e.SelectionName, &e.Sport,
		&e.LastOdds, &state, &active, &firstSeen, &lastSeen, &lastNotified, &e.NotifyCount,
	)
	if err != nil {
		return nil, err
	}
	e.Fingerprint = fingerprint.Fingerprint(fp)
	e.State = fingerprint.StateFromString(state)
	e.Active = active != 0
	e.FirstSeenAt = nanoToTime(firstSeen)
	e.LastSeenAt = nanoToTime(lastSeen)
	e.LastNotifiedAt = nanoToTime(lastNotified)
	return &e, nil
}

func scanAlert(scan func(...any) error) (*Alert, error) {
	var a Alert
	var createdAtNano int64
	err := scan(
		&a.ID, &a.Fingerprint, &a.EventID, &a.MarketName, &a.SelectionName, &a.Sport,
		&a.BoostedOdds, &a.FairOdds, &a.ExpectedValue, &a.Action, &createdAtNano,
	)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = nanoToTime(createdAtNano)
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeToNano maps the zero time to 0 so never-notified entries round-trip.
func timeToNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func nanoToTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
