package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service provides push-token registry operations.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new token service.
func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Register records a device token for a user.
//
// Re-registering an existing (user, token) pair is idempotent: the row is
// patched in place with the new platform/device and a fresh last-used
// timestamp. A token currently owned by a different user is treated as a
// reassigned device (app reinstall under a new account): the old row is
// removed and a fresh one inserted. A user at the token cap loses their
// oldest token first.
func (s *Service) Register(ctx context.Context, userID, value string, platform Platform, deviceID *string) (*Token, error) {
	if err := ValidateValue(value); err != nil {
		return nil, err
	}
	if !platform.Valid() {
		return nil, fmt.Errorf("%w: unsupported platform %q", ErrInvalidToken, platform)
	}

	now := s.now()

	existing, err := s.repo.GetByValue(ctx, value)
	switch {
	case err == nil && existing.UserID == userID:
		existing.Platform = platform
		existing.DeviceID = deviceID
		existing.LastUsed = now
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("update token: %w", err)
		}
		return existing, nil

	case err == nil:
		// Device reassigned to another account; the old owner loses it.
		s.logger.Info().
			Str("user_id", userID).
			Str("previous_user_id", existing.UserID).
			Msg("token ownership transferred")
		if err := s.repo.DeleteByValue(ctx, value); err != nil {
			return nil, fmt.Errorf("release token: %w", err)
		}

	case !errors.Is(err, ErrTokenNotFound):
		return nil, fmt.Errorf("lookup token: %w", err)
	}

	count, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count tokens: %w", err)
	}
	if count >= MaxTokensPerUser {
		if err := s.repo.DeleteOldest(ctx, userID); err != nil {
			return nil, fmt.Errorf("evict oldest token: %w", err)
		}
		s.logger.Info().
			Str("user_id", userID).
			Int("held", count).
			Msg("token cap reached, evicted oldest")
	}

	t := &Token{
		ID:        uuid.NewString(),
		UserID:    userID,
		Value:     value,
		Platform:  platform,
		DeviceID:  deviceID,
		LastUsed:  now,
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	return t, nil
}

// Unregister removes one token (ownership-checked) when value is given,
// otherwise every token the user holds.
func (s *Service) Unregister(ctx context.Context, userID, value string) error {
	if value == "" {
		return s.repo.DeleteByUser(ctx, userID)
	}
	return s.repo.Delete(ctx, userID, value)
}

// TokensFor returns all tokens registered for a user, oldest first.
// A logical notification fans out to every one of them.
func (s *Service) TokensFor(ctx context.Context, userID string) ([]*Token, error) {
	return s.repo.ListByUser(ctx, userID)
}

// DeleteByValue removes a token no matter who owns it. Invoked by ticket
// classification and receipt reconciliation when the gateway reports the
// device gone; never exposed to end users.
func (s *Service) DeleteByValue(ctx context.Context, value string) error {
	return s.repo.DeleteByValue(ctx, value)
}

// CleanupStale deletes every token unused for longer than StaleAfter and
// returns how many were removed.
func (s *Service) CleanupStale(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-StaleAfter)
	deleted, err := s.repo.DeleteLastUsedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale tokens: %w", err)
	}
	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Msg("stale tokens removed")
	}
	return deleted, nil
}
