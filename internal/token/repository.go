package token

import (
	"context"
	"time"
)

// Repository defines the interface for push-token persistence.
type Repository interface {
	// GetByValue retrieves a token by its value, regardless of owner.
	GetByValue(ctx context.Context, value string) (*Token, error)

	// ListByUser retrieves all tokens for a user, oldest first.
	ListByUser(ctx context.Context, userID string) ([]*Token, error)

	// CountByUser returns how many tokens a user currently holds.
	CountByUser(ctx context.Context, userID string) (int, error)

	// Create inserts a new token row.
	Create(ctx context.Context, t *Token) error

	// Update patches an existing token row by ID.
	Update(ctx context.Context, t *Token) error

	// Delete removes one token, ownership-checked.
	Delete(ctx context.Context, userID, value string) error

	// DeleteByValue removes a token regardless of owner.
	DeleteByValue(ctx context.Context, value string) error

	// DeleteByUser removes all tokens for a user.
	DeleteByUser(ctx context.Context, userID string) error

	// DeleteOldest removes the user's single oldest token by creation time.
	DeleteOldest(ctx context.Context, userID string) error

	// DeleteLastUsedBefore removes every token last used before the cutoff
	// and returns how many rows were deleted.
	DeleteLastUsedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
