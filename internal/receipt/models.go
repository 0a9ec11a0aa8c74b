// Package receipt stores the gateway's asynchronous delivery reports.
package receipt

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrReceiptNotFound = errors.New("push receipt not found")
)

// Status is the lifecycle state of a receipt.
//
// A receipt is created pending when a dispatch batch yields a ticket,
// transitions once to a terminal ok/error when the gateway reports on it,
// and is deleted unconditionally by the 24h age sweep whatever its state.
type Status string

const (
	StatusPending Status = "pending"
	StatusOK      Status = "ok"
	StatusError   Status = "error"
)

// Receipt is one stored delivery report keyed by the gateway ticket id.
// TokenValue is the device token the original message was addressed to;
// it is kept on the row so reconciliation never has to re-derive it.
type Receipt struct {
	TicketID   string
	TokenValue string
	Status     Status
	Error      *string
	CreatedAt  time.Time
	CheckedAt  *time.Time
}
