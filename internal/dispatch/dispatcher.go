// Package dispatch fans a logical notification out to a user's devices,
// batches it through the push gateway, and applies per-ticket effects.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ramonclaudio/dreamseeker-sub000/internal/gateway/expo"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/ratelimit"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/receipt"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/token"
)

const (
	// MaxTitleLength and MaxBodyLength bound notification content;
	// oversized input is rejected before any message is built.
	MaxTitleLength = 100
	MaxBodyLength  = 500

	// DefaultRetryDelay is how long a gateway-throttled message waits
	// before its single redelivery attempt.
	DefaultRetryDelay = 60 * time.Second

	// RetryTTLSeconds is the gateway TTL applied to redelivered
	// messages: 28 days.
	RetryTTLSeconds = 28 * 24 * 60 * 60

	// redeliverTimeout bounds the background redelivery call.
	redeliverTimeout = 30 * time.Second
)

// Dispatch errors. Only configuration and input validation fail the call
// outright; per-message failures accumulate into the Result instead.
var (
	ErrGatewayNotConfigured = errors.New("push gateway credential not configured")
	ErrInvalidNotification  = errors.New("invalid notification")
	ErrRateLimited          = errors.New("user send rate limit exceeded")
)

// Gateway is the dispatch-side surface of the push gateway client.
type Gateway interface {
	Configured() bool
	Publish(ctx context.Context, msgs []expo.Message) ([]expo.Ticket, error)
}

// Notification is one logical push request for a user; it fans out to
// every device token the user holds.
type Notification struct {
	UserID     string
	Title      string
	Body       string
	Data       map[string]any
	Sound      string
	Badge      *int
	ChannelID  string
	Priority   string
	TTL        int
	Expiration int64
}

// Result summarizes one dispatch call. Failed includes messages deferred
// for retry: they have not been delivered, even if they may be later.
type Result struct {
	Success bool     `json:"success"`
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// Config holds the dependencies and knobs for a Dispatcher.
type Config struct {
	Tokens    *token.Service
	Limiter   *ratelimit.Limiter
	Receipts  receipt.Repository
	Gateway   Gateway
	Scheduler Scheduler
	Logger    zerolog.Logger

	// RetryDelay overrides DefaultRetryDelay when positive.
	RetryDelay time.Duration
}

// Dispatcher delivers notifications through the push gateway.
type Dispatcher struct {
	tokens     *token.Service
	limiter    *ratelimit.Limiter
	receipts   receipt.Repository
	gateway    Gateway
	scheduler  Scheduler
	logger     zerolog.Logger
	retryDelay time.Duration
	now        func() time.Time
}

// New creates a new Dispatcher.
func New(cfg Config) *Dispatcher {
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	scheduler := cfg.Scheduler
	if scheduler == nil {
		scheduler = TimerScheduler{}
	}

	return &Dispatcher{
		tokens:     cfg.Tokens,
		limiter:    cfg.Limiter,
		receipts:   cfg.Receipts,
		gateway:    cfg.Gateway,
		scheduler:  scheduler,
		logger:     cfg.Logger,
		retryDelay: retryDelay,
		now:        time.Now,
	}
}

// Send delivers one notification to every device a user has registered.
//
// The send is user-initiated and counts against the user's rate limit.
// Configuration, validation, and rate-limit failures return an error with
// nothing sent; once messages are in flight, per-message failures only
// accumulate into the Result.
func (d *Dispatcher) Send(ctx context.Context, n Notification) (*Result, error) {
	if !d.gateway.Configured() {
		return nil, ErrGatewayNotConfigured
	}

	if len(n.Title) > MaxTitleLength {
		return nil, fmt.Errorf("%w: title exceeds %d characters", ErrInvalidNotification, MaxTitleLength)
	}
	if len(n.Body) > MaxBodyLength {
		return nil, fmt.Errorf("%w: body exceeds %d characters", ErrInvalidNotification, MaxBodyLength)
	}

	allowed, err := d.limiter.Allow(ctx, n.UserID)
	if err != nil {
		return nil, fmt.Errorf("check rate limit: %w", err)
	}
	if !allowed {
		return nil, ErrRateLimited
	}

	tokens, err := d.tokens.TokensFor(ctx, n.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolve tokens: %w", err)
	}
	if len(tokens) == 0 {
		return &Result{Success: false, Errors: []string{"No push tokens for user"}}, nil
	}

	msgs := make([]expo.Message, 0, len(tokens))
	for _, t := range tokens {
		msgs = append(msgs, buildMessage(n, t.Value))
	}

	result := d.deliver(ctx, msgs)

	d.logger.Info().
		Str("user_id", n.UserID).
		Int("devices", len(tokens)).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Bool("success", result.Success).
		Msg("notification dispatched")

	return result, nil
}

// buildMessage produces the per-token gateway message for a notification.
func buildMessage(n Notification, to string) expo.Message {
	return expo.Message{
		To:         to,
		Title:      n.Title,
		Body:       n.Body,
		Data:       n.Data,
		Sound:      n.Sound,
		Badge:      n.Badge,
		ChannelID:  n.ChannelID,
		Priority:   n.Priority,
		TTL:        n.TTL,
		Expiration: n.Expiration,
	}
}

// tally accumulates per-message outcomes across batches.
type tally struct {
	sent        int
	failed      int
	retryQueued int
	errors      []string
}

func (t *tally) result() *Result {
	return &Result{
		Success: t.failed == 0 && t.retryQueued == 0,
		Sent:    t.sent,
		Failed:  t.failed + t.retryQueued,
		Errors:  t.errors,
	}
}

// deliver posts messages batch by batch and applies every ticket effect.
// Batches run sequentially: ticket/message positional alignment stays
// trivial and the outbound rate stays predictable.
func (d *Dispatcher) deliver(ctx context.Context, msgs []expo.Message) *Result {
	var acc tally

	for _, batch := range chunkMessages(msgs, expo.MaxBatchSize) {
		tickets, err := d.gateway.Publish(ctx, batch)
		if err != nil {
			acc.failed += len(batch)
			acc.errors = append(acc.errors, fmt.Sprintf("batch of %d messages failed: %v", len(batch), err))
			d.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("gateway batch failed")
			continue
		}

		// ticket[j] must acknowledge batch[j]; a count mismatch means the
		// pairing cannot be trusted for any message in the batch.
		if len(tickets) != len(batch) {
			acc.failed += len(batch)
			acc.errors = append(acc.errors,
				fmt.Sprintf("gateway returned %d tickets for %d messages", len(tickets), len(batch)))
			d.logger.Error().
				Int("tickets", len(tickets)).
				Int("batch_size", len(batch)).
				Msg("ticket alignment broken, failing batch")
			continue
		}

		for j, ticket := range tickets {
			d.applyTicket(ctx, batch[j], ticket, &acc)
		}
	}

	return acc.result()
}

// applyTicket applies one classified ticket effect to the stores.
func (d *Dispatcher) applyTicket(ctx context.Context, msg expo.Message, ticket expo.Ticket, acc *tally) {
	c := Classify(ticket)

	switch c.Outcome {
	case OutcomeSent:
		acc.sent++
		if c.ReceiptID == "" {
			return
		}
		rec := &receipt.Receipt{
			TicketID:   c.ReceiptID,
			TokenValue: msg.To,
			Status:     receipt.StatusPending,
			CreatedAt:  d.now(),
		}
		if err := d.receipts.Create(ctx, rec); err != nil {
			d.logger.Warn().Err(err).Str("ticket_id", c.ReceiptID).Msg("failed to store receipt")
		}

	case OutcomeDeviceRemoved:
		acc.failed++
		acc.errors = append(acc.errors, c.Reason)
		if err := d.tokens.DeleteByValue(ctx, msg.To); err != nil {
			d.logger.Warn().Err(err).Msg("failed to delete unregistered token")
		}

	case OutcomeRateLimited:
		acc.retryQueued++
		d.scheduleRetry(msg)

	case OutcomeFailed:
		acc.failed++
		acc.errors = append(acc.errors, c.Reason)
	}
}

// scheduleRetry defers one gateway-throttled message for a single
// redelivery. The retry is system-initiated and bypasses the user rate
// limiter; see Limiter for why that policy is accepted.
func (d *Dispatcher) scheduleRetry(msg expo.Message) {
	retry := msg
	retry.Priority = expo.PriorityNormal
	retry.TTL = RetryTTLSeconds

	d.logger.Info().
		Dur("delay", d.retryDelay).
		Msg("message rate limited by gateway, retry scheduled")

	d.scheduler.RunAfter(d.retryDelay, func() {
		d.redeliver(retry)
	})
}

// redeliver resubmits one deferred message. Whatever the gateway says
// this time is final: a second throttle resolves as an ordinary failure
// and is never re-queued.
func (d *Dispatcher) redeliver(msg expo.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), redeliverTimeout)
	defer cancel()

	tickets, err := d.gateway.Publish(ctx, []expo.Message{msg})
	if err != nil {
		d.logger.Warn().Err(err).Msg("retry delivery failed")
		return
	}
	if len(tickets) != 1 {
		d.logger.Warn().Int("tickets", len(tickets)).Msg("retry delivery returned unexpected ticket count")
		return
	}

	c := Classify(tickets[0])
	switch c.Outcome {
	case OutcomeSent:
		if c.ReceiptID == "" {
			return
		}
		rec := &receipt.Receipt{
			TicketID:   c.ReceiptID,
			TokenValue: msg.To,
			Status:     receipt.StatusPending,
			CreatedAt:  d.now(),
		}
		if err := d.receipts.Create(ctx, rec); err != nil {
			d.logger.Warn().Err(err).Str("ticket_id", c.ReceiptID).Msg("failed to store retry receipt")
		}

	case OutcomeDeviceRemoved:
		if err := d.tokens.DeleteByValue(ctx, msg.To); err != nil {
			d.logger.Warn().Err(err).Msg("failed to delete unregistered token")
		}

	default:
		d.logger.Warn().Str("reason", c.Reason).Msg("retry delivery not accepted, giving up")
	}
}

// chunkMessages splits messages into gateway-sized batches, preserving
// order so ticket alignment holds within each batch.
func chunkMessages(msgs []expo.Message, size int) [][]expo.Message {
	if size <= 0 || len(msgs) == 0 {
		return nil
	}

	batches := make([][]expo.Message, 0, (len(msgs)+size-1)/size)
	for start := 0; start < len(msgs); start += size {
		end := start + size
		if end > len(msgs) {
			end = len(msgs)
		}
		batches = append(batches, msgs[start:end])
	}
	return batches
}
