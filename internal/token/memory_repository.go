package token

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use the PostgreSQL implementation.
type InMemoryRepository struct {
	mu     sync.RWMutex
	tokens map[string]*Token // keyed by token value
}

// NewInMemoryRepository creates a new in-memory token repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		tokens: make(map[string]*Token),
	}
}

// GetByValue retrieves a token by its value.
func (r *InMemoryRepository) GetByValue(_ context.Context, value string) (*Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[value]
	if !ok {
		return nil, ErrTokenNotFound
	}

	return copyToken(t), nil
}

// ListByUser retrieves all tokens for a user, oldest first.
func (r *InMemoryRepository) ListByUser(_ context.Context, userID string) ([]*Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Token
	for _, t := range r.tokens {
		if t.UserID == userID {
			items = append(items, copyToken(t))
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	return items, nil
}

// CountByUser returns how many tokens a user currently holds.
func (r *InMemoryRepository) CountByUser(_ context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, t := range r.tokens {
		if t.UserID == userID {
			count++
		}
	}
	return count, nil
}

// Create inserts a new token row.
func (r *InMemoryRepository) Create(_ context.Context, t *Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[t.Value] = copyToken(t)
	return nil
}

// Update patches an existing token row by ID.
func (r *InMemoryRepository) Update(_ context.Context, t *Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for value, existing := range r.tokens {
		if existing.ID == t.ID {
			updated := copyToken(existing)
			updated.Platform = t.Platform
			updated.DeviceID = t.DeviceID
			updated.LastUsed = t.LastUsed
			r.tokens[value] = updated
			return nil
		}
	}

	return ErrTokenNotFound
}

// Delete removes one token, ownership-checked.
func (r *InMemoryRepository) Delete(_ context.Context, userID, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[value]
	if !ok || t.UserID != userID {
		return ErrTokenNotFound
	}

	delete(r.tokens, value)
	return nil
}

// DeleteByValue removes a token regardless of owner.
func (r *InMemoryRepository) DeleteByValue(_ context.Context, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, value)
	return nil
}

// DeleteByUser removes all tokens for a user.
func (r *InMemoryRepository) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for value, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, value)
		}
	}
	return nil
}

// DeleteOldest removes the user's single oldest token by creation time.
func (r *InMemoryRepository) DeleteOldest(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var oldest *Token
	for _, t := range r.tokens {
		if t.UserID != userID {
			continue
		}
		if oldest == nil || t.CreatedAt.Before(oldest.CreatedAt) {
			oldest = t
		}
	}

	if oldest != nil {
		delete(r.tokens, oldest.Value)
	}
	return nil
}

// DeleteLastUsedBefore removes every token last used before the cutoff.
func (r *InMemoryRepository) DeleteLastUsedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for value, t := range r.tokens {
		if t.LastUsed.Before(cutoff) {
			delete(r.tokens, value)
			deleted++
		}
	}
	return deleted, nil
}

// copyToken creates a deep copy of a token.
func copyToken(t *Token) *Token {
	if t == nil {
		return nil
	}

	tokenCopy := &Token{
		ID:        t.ID,
		UserID:    t.UserID,
		Value:     t.Value,
		Platform:  t.Platform,
		LastUsed:  t.LastUsed,
		CreatedAt: t.CreatedAt,
	}

	if t.DeviceID != nil {
		val := *t.DeviceID
		tokenCopy.DeviceID = &val
	}

	return tokenCopy
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
