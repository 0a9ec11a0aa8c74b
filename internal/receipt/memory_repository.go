package receipt

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use the PostgreSQL implementation.
type InMemoryRepository struct {
	mu       sync.RWMutex
	receipts map[string]*Receipt // keyed by ticket id
}

// NewInMemoryRepository creates a new in-memory receipt repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		receipts: make(map[string]*Receipt),
	}
}

// Create inserts a new receipt row.
func (r *InMemoryRepository) Create(_ context.Context, rec *Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.receipts[rec.TicketID] = copyReceipt(rec)
	return nil
}

// GetByTicketID retrieves one receipt by its gateway ticket id.
func (r *InMemoryRepository) GetByTicketID(_ context.Context, ticketID string) (*Receipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.receipts[ticketID]
	if !ok {
		return nil, ErrReceiptNotFound
	}
	return copyReceipt(rec), nil
}

// ListPendingBefore retrieves up to limit pending receipts created before
// the cutoff, oldest first.
func (r *InMemoryRepository) ListPendingBefore(_ context.Context, cutoff time.Time, limit int) ([]*Receipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Receipt
	for _, rec := range r.receipts {
		if rec.Status == StatusPending && rec.CreatedAt.Before(cutoff) {
			items = append(items, copyReceipt(rec))
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	return items, nil
}

// MarkOK transitions a receipt to its terminal ok state.
func (r *InMemoryRepository) MarkOK(_ context.Context, ticketID string, checkedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.receipts[ticketID]
	if !ok {
		return ErrReceiptNotFound
	}

	rec.Status = StatusOK
	at := checkedAt
	rec.CheckedAt = &at
	return nil
}

// MarkError transitions a receipt to its terminal error state.
func (r *InMemoryRepository) MarkError(_ context.Context, ticketID, reason string, checkedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.receipts[ticketID]
	if !ok {
		return ErrReceiptNotFound
	}

	rec.Status = StatusError
	msg := reason
	rec.Error = &msg
	at := checkedAt
	rec.CheckedAt = &at
	return nil
}

// DeleteCreatedBefore removes receipts created before the cutoff regardless of status.
func (r *InMemoryRepository) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, rec := range r.receipts {
		if rec.CreatedAt.Before(cutoff) {
			delete(r.receipts, id)
			deleted++
		}
	}
	return deleted, nil
}

// copyReceipt creates a deep copy of a receipt.
func copyReceipt(rec *Receipt) *Receipt {
	if rec == nil {
		return nil
	}

	receiptCopy := &Receipt{
		TicketID:   rec.TicketID,
		TokenValue: rec.TokenValue,
		Status:     rec.Status,
		CreatedAt:  rec.CreatedAt,
	}

	if rec.Error != nil {
		val := *rec.Error
		receiptCopy.Error = &val
	}
	if rec.CheckedAt != nil {
		val := *rec.CheckedAt
		receiptCopy.CheckedAt = &val
	}

	return receiptCopy
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
