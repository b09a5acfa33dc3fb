package watcher

import "time"

// Report summarizes one completed watch cycle.
type Report struct {
	Quotes     int
	Invalid    int
	ValueBets  int
	Notified   int
	Renotified int
	Suppressed int
	Removed    int
	Duration   time.Duration
}
