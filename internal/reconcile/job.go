// Package reconcile provides background jobs that settle pending push
// receipts against the gateway and sweep expired rows.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ramonclaudio/dreamseeker-sub000/internal/gateway/expo"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/ratelimit"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/receipt"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/token"
)

// ReceiptGateway is the reconciler-side surface of the push gateway.
type ReceiptGateway interface {
	Configured() bool
	GetReceipts(ctx context.Context, ids []string) (map[string]expo.Receipt, error)
}

// Config holds tuning for the reconciliation job.
type Config struct {
	// PendingAfter is how old a pending receipt must be before it is
	// eligible for a gateway check. The gateway needs time to settle a
	// ticket; polling sooner just burns the query budget.
	// Default: 15 minutes.
	PendingAfter time.Duration

	// BatchSize is the maximum number of receipts checked per run.
	// Default: 1000, the gateway's per-request ceiling.
	BatchSize int

	// ReceiptMaxAge is how long any receipt row is kept, resolved or
	// not, before the cleanup sweep removes it.
	// Default: 24 hours.
	ReceiptMaxAge time.Duration
}

// DefaultConfig returns the default reconciliation configuration.
func DefaultConfig() Config {
	return Config{
		PendingAfter:  15 * time.Minute,
		BatchSize:     expo.MaxReceiptIDs,
		ReceiptMaxAge: 24 * time.Hour,
	}
}

// Metrics tracks reconciliation job statistics.
type Metrics struct {
	mu sync.RWMutex

	TotalRuns        int64
	ReceiptsChecked  int64
	ReceiptsOK       int64
	ReceiptsErrored  int64
	TokensDeleted    int64
	RunErrors        int64
	ReceiptsSwept    int64
	StaleTokensSwept int64
	RateRecordsSwept int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
}

// JobConfig holds the dependencies for creating a Job.
type JobConfig struct {
	Config   Config
	Logger   zerolog.Logger
	Receipts receipt.Repository
	Tokens   *token.Service
	Gateway  ReceiptGateway
	Limiter  *ratelimit.Limiter
}

// Job reconciles pending receipts with the gateway and runs the
// periodic cleanup sweeps.
type Job struct {
	config   Config
	logger   zerolog.Logger
	receipts receipt.Repository
	tokens   *token.Service
	gateway  ReceiptGateway
	limiter  *ratelimit.Limiter
	metrics  *Metrics
	now      func() time.Time
}

// NewJob creates a new reconciliation job.
func NewJob(cfg JobConfig) *Job {
	config := cfg.Config
	if config.PendingAfter <= 0 {
		config.PendingAfter = DefaultConfig().PendingAfter
	}
	if config.BatchSize <= 0 || config.BatchSize > expo.MaxReceiptIDs {
		config.BatchSize = expo.MaxReceiptIDs
	}
	if config.ReceiptMaxAge <= 0 {
		config.ReceiptMaxAge = DefaultConfig().ReceiptMaxAge
	}

	return &Job{
		config:   config,
		logger:   cfg.Logger,
		receipts: cfg.Receipts,
		tokens:   cfg.Tokens,
		gateway:  cfg.Gateway,
		limiter:  cfg.Limiter,
		metrics:  &Metrics{},
		now:      time.Now,
	}
}

// Result contains the outcome of one reconciliation run.
type Result struct {
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	Checked       int
	OK            int
	Errored       int
	StillPending  int
	TokensDeleted int
	Errors        []string
}

// Run checks one batch of settled-enough pending receipts against the
// gateway and applies the verdicts. Receipts the gateway has not
// resolved yet stay pending and are picked up by a later run.
func (j *Job) Run(ctx context.Context) *Result {
	start := j.now()
	result := &Result{StartTime: start}

	defer func() {
		result.EndTime = j.now()
		result.Duration = result.EndTime.Sub(start)
		j.updateMetrics(result)
	}()

	if !j.gateway.Configured() {
		j.logger.Debug().Msg("gateway not configured, skipping receipt check")
		return result
	}

	cutoff := start.Add(-j.config.PendingAfter)
	pending, err := j.receipts.ListPendingBefore(ctx, cutoff, j.config.BatchSize)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list pending receipts: %v", err))
		j.logger.Error().Err(err).Msg("failed to list pending receipts")
		return result
	}
	if len(pending) == 0 {
		return result
	}

	byTicket := make(map[string]*receipt.Receipt, len(pending))
	ids := make([]string, 0, len(pending))
	for _, rec := range pending {
		byTicket[rec.TicketID] = rec
		ids = append(ids, rec.TicketID)
	}

	j.logger.Info().Int("pending", len(ids)).Msg("checking push receipts")

	verdicts, err := j.gateway.GetReceipts(ctx, ids)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("fetch receipts: %v", err))
		j.logger.Error().Err(err).Msg("failed to fetch receipts from gateway")
		return result
	}

	result.Checked = len(ids)

	for ticketID, verdict := range verdicts {
		rec, known := byTicket[ticketID]
		if !known {
			continue
		}
		j.applyVerdict(ctx, rec, verdict, result)
	}
	result.StillPending = result.Checked - result.OK - result.Errored

	j.logger.Info().
		Int("checked", result.Checked).
		Int("ok", result.OK).
		Int("errored", result.Errored).
		Int("still_pending", result.StillPending).
		Int("tokens_deleted", result.TokensDeleted).
		Msg("receipt check completed")

	return result
}

// applyVerdict resolves one pending receipt with the gateway's answer.
func (j *Job) applyVerdict(ctx context.Context, rec *receipt.Receipt, verdict expo.Receipt, result *Result) {
	checkedAt := j.now()

	if verdict.Status == expo.StatusOK {
		if err := j.receipts.MarkOK(ctx, rec.TicketID, checkedAt); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("mark receipt %s ok: %v", rec.TicketID, err))
			return
		}
		result.OK++
		return
	}

	reason := verdict.Reason()
	if err := j.receipts.MarkError(ctx, rec.TicketID, reason, checkedAt); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("mark receipt %s error: %v", rec.TicketID, err))
		return
	}
	result.Errored++

	// The receipt remembers which token the message went to, so the
	// dead device can be unregistered long after the send.
	if verdict.ErrorCode() == expo.ErrorDeviceNotRegistered && rec.TokenValue != "" {
		if err := j.tokens.DeleteByValue(ctx, rec.TokenValue); err != nil {
			j.logger.Warn().Err(err).Str("ticket_id", rec.TicketID).Msg("failed to delete unregistered token")
			return
		}
		result.TokensDeleted++
	}
}

// CleanupResult contains the outcome of one cleanup sweep.
type CleanupResult struct {
	ReceiptsDeleted    int64
	StaleTokensDeleted int64
	RateRecordsDeleted int64
	Errors             []string
}

// Cleanup sweeps expired rows: receipts past their retention age
// regardless of status, device tokens idle past the staleness horizon,
// and rate-limit records outside any live window.
func (j *Job) Cleanup(ctx context.Context) *CleanupResult {
	result := &CleanupResult{}

	receiptCutoff := j.now().Add(-j.config.ReceiptMaxAge)
	swept, err := j.receipts.DeleteCreatedBefore(ctx, receiptCutoff)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("sweep receipts: %v", err))
		j.logger.Error().Err(err).Msg("receipt sweep failed")
	} else {
		result.ReceiptsDeleted = swept
	}

	staleTokens, err := j.tokens.CleanupStale(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("sweep stale tokens: %v", err))
		j.logger.Error().Err(err).Msg("stale token sweep failed")
	} else {
		result.StaleTokensDeleted = staleTokens
	}

	rateRecords, err := j.limiter.Prune(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("prune rate records: %v", err))
		j.logger.Error().Err(err).Msg("rate record prune failed")
	} else {
		result.RateRecordsDeleted = rateRecords
	}

	j.metrics.mu.Lock()
	j.metrics.ReceiptsSwept += result.ReceiptsDeleted
	j.metrics.StaleTokensSwept += result.StaleTokensDeleted
	j.metrics.RateRecordsSwept += result.RateRecordsDeleted
	j.metrics.mu.Unlock()

	j.logger.Info().
		Int64("receipts_deleted", result.ReceiptsDeleted).
		Int64("stale_tokens_deleted", result.StaleTokensDeleted).
		Int64("rate_records_deleted", result.RateRecordsDeleted).
		Msg("cleanup sweep completed")

	return result
}

func (j *Job) updateMetrics(result *Result) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.ReceiptsChecked += int64(result.Checked)
	j.metrics.ReceiptsOK += int64(result.OK)
	j.metrics.ReceiptsErrored += int64(result.Errored)
	j.metrics.TokensDeleted += int64(result.TokensDeleted)
	j.metrics.RunErrors += int64(len(result.Errors))
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *Job) GetMetrics() Metrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return Metrics{
		TotalRuns:        j.metrics.TotalRuns,
		ReceiptsChecked:  j.metrics.ReceiptsChecked,
		ReceiptsOK:       j.metrics.ReceiptsOK,
		ReceiptsErrored:  j.metrics.ReceiptsErrored,
		TokensDeleted:    j.metrics.TokensDeleted,
		RunErrors:        j.metrics.RunErrors,
		ReceiptsSwept:    j.metrics.ReceiptsSwept,
		StaleTokensSwept: j.metrics.StaleTokensSwept,
		RateRecordsSwept: j.metrics.RateRecordsSwept,
		LastRunAt:        j.metrics.LastRunAt,
		LastRunDuration:  j.metrics.LastRunDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *Job) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":         m.TotalRuns,
		"receipts_checked":   m.ReceiptsChecked,
		"receipts_ok":        m.ReceiptsOK,
		"receipts_errored":   m.ReceiptsErrored,
		"tokens_deleted":     m.TokensDeleted,
		"run_errors":         m.RunErrors,
		"receipts_swept":     m.ReceiptsSwept,
		"stale_tokens_swept": m.StaleTokensSwept,
		"rate_records_swept": m.RateRecordsSwept,
		"last_run_at":        m.LastRunAt,
		"last_run_duration":  m.LastRunDuration.String(),
	}
}
