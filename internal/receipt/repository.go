package receipt

import (
	"context"
	"time"
)

// Repository defines the interface for receipt persistence.
type Repository interface {
	// Create inserts a new receipt row.
	Create(ctx context.Context, r *Receipt) error

	// GetByTicketID retrieves one receipt by its gateway ticket id.
	GetByTicketID(ctx context.Context, ticketID string) (*Receipt, error)

	// ListPendingBefore retrieves up to limit pending receipts created
	// before the cutoff, oldest first.
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Receipt, error)

	// MarkOK transitions a receipt to its terminal ok state.
	MarkOK(ctx context.Context, ticketID string, checkedAt time.Time) error

	// MarkError transitions a receipt to its terminal error state with the
	// gateway-reported reason.
	MarkError(ctx context.Context, ticketID, reason string, checkedAt time.Time) error

	// DeleteCreatedBefore removes receipts created before the cutoff
	// regardless of status and returns how many rows were deleted.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
