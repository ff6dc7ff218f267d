// Package consumer is the read side of the published artifact: a polling
// client that refetches the forecast no more than once per staleness window
// and serves its persisted copy in between.
package consumer

import "time"

// DefaultInterval is the minimum time between two downloads of the artifact.
const DefaultInterval = 5 * time.Minute

// IsStale reports whether a copy fetched at lastFetchedAt must be refreshed
// at now. A zero lastFetchedAt (never fetched) is stale, and so is one in the
// future, which happens after the clock steps backwards.
func IsStale(lastFetchedAt, now time.Time, interval time.Duration) bool {
	if lastFetchedAt.IsZero() {
		return true
	}
	elapsed := now.Sub(lastFetchedAt)
	if elapsed < 0 {
		return true
	}
	return elapsed >= interval
}
