package token

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *InMemoryRepository) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, zerolog.Nop())
	return svc, repo
}

func testValue(n int) string {
	return fmt.Sprintf("ExponentPushToken[device-%03d]", n)
}

func TestValidateValue(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ok    bool
	}{
		{name: "exponent prefix", value: "ExponentPushToken[abc]", ok: true},
		{name: "expo prefix", value: "ExpoPushToken[abc]", ok: true},
		{name: "empty", value: "", ok: false},
		{name: "wrong prefix", value: "fcm-token-123", ok: false},
		{name: "too long", value: "ExponentPushToken[" + strings.Repeat("x", 200) + "]", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateValue(tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidToken)
			}
		})
	}
}

func TestRegister_Idempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	first, err := svc.Register(ctx, "user-1", testValue(1), PlatformIOS, nil)
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(time.Hour) }
	deviceID := "iphone-15"
	second, err := svc.Register(ctx, "user-1", testValue(1), PlatformIOS, &deviceID)
	require.NoError(t, err)

	tokens, err := svc.TokensFor(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, tokens, 1, "re-registration must not duplicate the row")

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, tokens[0].LastUsed.After(first.CreatedAt), "lastUsed must advance")
	require.NotNil(t, tokens[0].DeviceID)
	assert.Equal(t, "iphone-15", *tokens[0].DeviceID)
}

func TestRegister_OwnershipTransfer(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "user-a", testValue(1), PlatformAndroid, nil)
	require.NoError(t, err)

	transferred, err := svc.Register(ctx, "user-b", testValue(1), PlatformAndroid, nil)
	require.NoError(t, err)
	assert.Equal(t, "user-b", transferred.UserID)

	aTokens, err := svc.TokensFor(ctx, "user-a")
	require.NoError(t, err)
	assert.Empty(t, aTokens, "previous owner must lose the token")

	bTokens, err := svc.TokensFor(ctx, "user-b")
	require.NoError(t, err)
	require.Len(t, bTokens, 1)
	assert.Equal(t, testValue(1), bTokens[0].Value)
}

func TestRegister_EvictsOldestAtCap(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < MaxTokensPerUser; i++ {
		tick := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return tick }
		_, err := svc.Register(ctx, "user-1", testValue(i), PlatformIOS, nil)
		require.NoError(t, err)
	}

	svc.now = func() time.Time { return base.Add(time.Hour) }
	_, err := svc.Register(ctx, "user-1", testValue(MaxTokensPerUser), PlatformIOS, nil)
	require.NoError(t, err)

	tokens, err := svc.TokensFor(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, tokens, MaxTokensPerUser)

	values := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		values = append(values, tok.Value)
	}
	assert.NotContains(t, values, testValue(0), "oldest token must be evicted")
	assert.Contains(t, values, testValue(MaxTokensPerUser))
}

func TestRegister_RejectsInvalidInput(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "user-1", "not-a-token", PlatformIOS, nil)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Register(ctx, "user-1", testValue(1), Platform("web"), nil)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUnregister(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "user-1", testValue(1), PlatformIOS, nil)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "user-1", testValue(2), PlatformIOS, nil)
	require.NoError(t, err)

	// Ownership check: another user cannot remove the token.
	err = svc.Unregister(ctx, "user-2", testValue(1))
	assert.ErrorIs(t, err, ErrTokenNotFound)

	require.NoError(t, svc.Unregister(ctx, "user-1", testValue(1)))
	tokens, err := svc.TokensFor(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, tokens, 1)

	// Empty value removes everything the user holds.
	require.NoError(t, svc.Unregister(ctx, "user-1", ""))
	tokens, err = svc.TokensFor(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestCleanupStale(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	fresh := &Token{ID: "t1", UserID: "u1", Value: testValue(1), Platform: PlatformIOS,
		LastUsed: now.Add(-29 * 24 * time.Hour), CreatedAt: now.Add(-60 * 24 * time.Hour)}
	stale := &Token{ID: "t2", UserID: "u1", Value: testValue(2), Platform: PlatformIOS,
		LastUsed: now.Add(-31 * 24 * time.Hour), CreatedAt: now.Add(-60 * 24 * time.Hour)}
	require.NoError(t, repo.Create(ctx, fresh))
	require.NoError(t, repo.Create(ctx, stale))

	deleted, err := svc.CleanupStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	tokens, err := svc.TokensFor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, testValue(1), tokens[0].Value)
}
