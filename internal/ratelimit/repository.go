package ratelimit

import (
	"context"
	"time"
)

// Repository defines the interface for rate-limit record persistence.
type Repository interface {
	// CountSince returns how many records a user accrued at or after the
	// given instant.
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)

	// Create appends a new record.
	Create(ctx context.Context, rec *Record) error

	// DeleteBefore removes records created before the cutoff and returns
	// how many rows were deleted.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
