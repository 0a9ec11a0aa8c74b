// Package token manages the push-token lifecycle for a user's devices.
package token

import (
	"errors"
	"strings"
	"time"
)

// Repository errors.
var (
	ErrTokenNotFound = errors.New("push token not found")
	ErrInvalidToken  = errors.New("invalid push token")
)

// Platform represents the mobile platform a token was issued for.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// Valid reports whether the platform is one we deliver to.
func (p Platform) Valid() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

const (
	// MaxTokensPerUser caps how many devices a single user may register.
	// Registering past the cap evicts the user's oldest token.
	MaxTokensPerUser = 10

	// MaxTokenLength is the longest token value we accept.
	MaxTokenLength = 200

	// StaleAfter is how long an unused token survives before the
	// cleanup sweep removes it.
	StaleAfter = 30 * 24 * time.Hour
)

// tokenPrefixes are the vendor prefixes a gateway token may carry.
var tokenPrefixes = []string{"ExponentPushToken[", "ExpoPushToken["}

// Token is one registered device token. A token value belongs to at most
// one user at any time.
type Token struct {
	ID        string
	UserID    string
	Value     string
	Platform  Platform
	DeviceID  *string
	LastUsed  time.Time
	CreatedAt time.Time
}

// ValidateValue checks that a raw token value has the shape the gateway
// issues: non-empty, vendor-prefixed, and within the length cap.
func ValidateValue(value string) error {
	if value == "" || len(value) > MaxTokenLength {
		return ErrInvalidToken
	}
	for _, prefix := range tokenPrefixes {
		if strings.HasPrefix(value, prefix) {
			return nil
		}
	}
	return ErrInvalidToken
}
