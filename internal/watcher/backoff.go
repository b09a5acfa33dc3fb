package watcher

import "time"

// Policy computes the wait between cycles after consecutive scrape
// failures: exponential doubling from Base, never above Cap. Pure; no
// clock, no state, testable without waiting.
type Policy struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns the backoff for the next attempt given the number of
// consecutive failures so far: Base after the first failure, doubling on
// each further one, capped at Cap.
func (p Policy) Delay(failureCount int) time.Duration {
	d := p.Base
	for i := 1; i < failureCount; i++ {
		d *= 2
		if d >= p.Cap {
			return p.Cap
		}
	}
	if d > p.Cap {
		return p.Cap
	}
	return d
}
