package scrape

import "fmt"

// SnapshotError wraps a transient failure while fetching, rendering, or
// parsing the promotions page. The watcher treats it as retryable.
type SnapshotError struct {
	Stage string // "fetch", "render", or "parse"
	Err   error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("scrape %s: %v", e.Stage, e.Err)
}

func (e *SnapshotError) Unwrap() error {
	return e.Err
}
