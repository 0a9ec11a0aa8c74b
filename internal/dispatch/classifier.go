package dispatch

import (
	"github.com/ramonclaudio/dreamseeker-sub000/internal/gateway/expo"
)

// Outcome is the delivery category a gateway ticket maps to.
type Outcome int

const (
	// OutcomeSent means the gateway accepted the message. When the ticket
	// carries an id a pending receipt is stored under it.
	OutcomeSent Outcome = iota

	// OutcomeDeviceRemoved means the device is gone for good; the token must
	// be deleted and the message counted failed.
	OutcomeDeviceRemoved

	// OutcomeRateLimited means the gateway throttled the message; it is
	// deferred for one delayed retry and not counted failed yet.
	OutcomeRateLimited

	// OutcomeFailed covers any other error; counted failed, token kept.
	OutcomeFailed
)

// Classification is the effect a single ticket calls for.
type Classification struct {
	Outcome Outcome

	// ReceiptID is the ticket id to store a pending receipt under.
	// Set only for OutcomeSent tickets that carry an id.
	ReceiptID string

	// Reason is the failure reason for non-sent outcomes.
	Reason string
}

// Classify maps one gateway ticket to its outcome. It is pure: no store
// access, no logging, fully testable from literal fixtures.
//
// Anything the gateway does not explicitly flag as an error is treated as
// accepted; unknown ticket shapes must not fail deliveries that the
// gateway itself did not reject.
func Classify(t expo.Ticket) Classification {
	if t.Status != expo.StatusError {
		c := Classification{Outcome: OutcomeSent}
		if t.Status == expo.StatusOK && t.ID != "" {
			c.ReceiptID = t.ID
		}
		return c
	}

	switch t.ErrorCode() {
	case expo.ErrorDeviceNotRegistered:
		return Classification{Outcome: OutcomeDeviceRemoved, Reason: t.Reason()}
	case expo.ErrorMessageRateExceeded:
		return Classification{Outcome: OutcomeRateLimited, Reason: t.Reason()}
	default:
		return Classification{Outcome: OutcomeFailed, Reason: t.Reason()}
	}
}
