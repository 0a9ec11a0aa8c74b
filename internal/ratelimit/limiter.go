package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Limiter enforces the sliding-window cap on user-initiated sends.
//
// The check and the insert are two separate store operations, so two
// concurrent sends from the same user can both slip under the cap. That
// race is accepted: the limiter is a deterrent against runaway clients,
// not a hard quota.
type Limiter struct {
	repo   Repository
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewLimiter creates a limiter with the default window and cap.
func NewLimiter(repo Repository) *Limiter {
	return &Limiter{
		repo:   repo,
		limit:  Limit,
		window: Window,
		now:    time.Now,
	}
}

// Allow reports whether the user may send now. When allowed it records
// the send; when denied nothing is written.
func (l *Limiter) Allow(ctx context.Context, userID string) (bool, error) {
	now := l.now()

	count, err := l.repo.CountSince(ctx, userID, now.Add(-l.window))
	if err != nil {
		return false, fmt.Errorf("count rate-limit records: %w", err)
	}
	if count >= l.limit {
		return false, nil
	}

	rec := &Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
	}
	if err := l.repo.Create(ctx, rec); err != nil {
		return false, fmt.Errorf("record send: %w", err)
	}

	return true, nil
}

// Prune deletes records old enough to be outside any window.
func (l *Limiter) Prune(ctx context.Context) (int64, error) {
	return l.repo.DeleteBefore(ctx, l.now().Add(-RecordRetention))
}
