// Package ratelimit caps how often a user may trigger outbound push sends.
package ratelimit

import "time"

const (
	// Window is the trailing interval a send is counted against.
	Window = 60 * time.Second

	// Limit is the maximum number of sends allowed inside the window.
	Limit = 10

	// RecordRetention is how long spent records are kept before the
	// cleanup job prunes them. Anything older than the window is dead
	// weight; retention is padded so pruning never races the counter.
	RecordRetention = 10 * time.Minute
)

// Record is one append-only mark of a user-initiated send.
type Record struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}
