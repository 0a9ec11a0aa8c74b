package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonclaudio/dreamseeker-sub000/internal/gateway/expo"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/ratelimit"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/receipt"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/token"
)

// fakeReceiptGateway replays a scripted verdict map and records the ids
// it was asked about.
type fakeReceiptGateway struct {
	mu         sync.Mutex
	configured bool
	verdicts   map[string]expo.Receipt
	err        error
	requested  [][]string
}

func (g *fakeReceiptGateway) Configured() bool { return g.configured }

func (g *fakeReceiptGateway) GetReceipts(_ context.Context, ids []string) (map[string]expo.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	asked := make([]string, len(ids))
	copy(asked, ids)
	g.requested = append(g.requested, asked)

	if g.err != nil {
		return nil, g.err
	}
	return g.verdicts, nil
}

type jobFixture struct {
	job      *Job
	gateway  *fakeReceiptGateway
	receipts receipt.Repository
	tokens   *token.Service
	rates    ratelimit.Repository
	now      time.Time
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()

	gw := &fakeReceiptGateway{configured: true, verdicts: map[string]expo.Receipt{}}
	receipts := receipt.NewInMemoryRepository()
	tokens := token.NewService(token.NewInMemoryRepository(), zerolog.Nop())
	rates := ratelimit.NewInMemoryRepository()

	job := NewJob(JobConfig{
		Logger:   zerolog.Nop(),
		Receipts: receipts,
		Tokens:   tokens,
		Gateway:  gw,
		Limiter:  ratelimit.NewLimiter(rates),
	})

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	return &jobFixture{job: job, gateway: gw, receipts: receipts, tokens: tokens, rates: rates, now: now}
}

func (f *jobFixture) addReceipt(t *testing.T, ticketID, tokenValue string, age time.Duration) {
	t.Helper()

	err := f.receipts.Create(context.Background(), &receipt.Receipt{
		TicketID:   ticketID,
		TokenValue: tokenValue,
		Status:     receipt.StatusPending,
		CreatedAt:  f.now.Add(-age),
	})
	require.NoError(t, err)
}

func okVerdict() expo.Receipt {
	return expo.Receipt{Status: expo.StatusOK}
}

func errorVerdict(code string) expo.Receipt {
	return expo.Receipt{
		Status:  expo.StatusError,
		Message: "delivery failed",
		Details: &expo.ErrorDetails{Error: code},
	}
}

func TestJob_Run_MarksReceiptsOK(t *testing.T) {
	f := newJobFixture(t)
	f.addReceipt(t, "ticket-1", "ExponentPushToken[aaa]", 20*time.Minute)
	f.gateway.verdicts["ticket-1"] = okVerdict()

	result := f.job.Run(context.Background())

	assert.Equal(t, 1, result.Checked)
	assert.Equal(t, 1, result.OK)
	assert.Equal(t, 0, result.Errored)
	assert.Empty(t, result.Errors)

	rec, err := f.receipts.GetByTicketID(context.Background(), "ticket-1")
	require.NoError(t, err)
	assert.Equal(t, receipt.StatusOK, rec.Status)
	require.NotNil(t, rec.CheckedAt)
	assert.Equal(t, f.now, *rec.CheckedAt)
}

func TestJob_Run_SkipsFreshReceipts(t *testing.T) {
	f := newJobFixture(t)
	f.addReceipt(t, "fresh", "ExponentPushToken[aaa]", 5*time.Minute)
	f.addReceipt(t, "aged", "ExponentPushToken[bbb]", 16*time.Minute)
	f.gateway.verdicts["aged"] = okVerdict()

	result := f.job.Run(context.Background())

	assert.Equal(t, 1, result.Checked)
	require.Len(t, f.gateway.requested, 1)
	assert.Equal(t, []string{"aged"}, f.gateway.requested[0])

	rec, err := f.receipts.GetByTicketID(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, receipt.StatusPending, rec.Status)
}

func TestJob_Run_UnresolvedReceiptsStayPending(t *testing.T) {
	f := newJobFixture(t)
	f.addReceipt(t, "settled", "ExponentPushToken[aaa]", 20*time.Minute)
	f.addReceipt(t, "unsettled", "ExponentPushToken[bbb]", 20*time.Minute)
	f.gateway.verdicts["settled"] = okVerdict()

	result := f.job.Run(context.Background())

	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, 1, result.OK)
	assert.Equal(t, 1, result.StillPending)

	rec, err := f.receipts.GetByTicketID(context.Background(), "unsettled")
	require.NoError(t, err)
	assert.Equal(t, receipt.StatusPending, rec.Status)
	assert.Nil(t, rec.CheckedAt)
}

func TestJob_Run_DeviceNotRegisteredDeletesToken(t *testing.T) {
	f := newJobFixture(t)
	value := "ExponentPushToken[dead-device]"
	_, err := f.tokens.Register(context.Background(), "user-1", value, token.PlatformAndroid, nil)
	require.NoError(t, err)

	f.addReceipt(t, "ticket-1", value, 20*time.Minute)
	f.gateway.verdicts["ticket-1"] = errorVerdict(expo.ErrorDeviceNotRegistered)

	result := f.job.Run(context.Background())

	assert.Equal(t, 1, result.Errored)
	assert.Equal(t, 1, result.TokensDeleted)

	rec, err := f.receipts.GetByTicketID(context.Background(), "ticket-1")
	require.NoError(t, err)
	assert.Equal(t, receipt.StatusError, rec.Status)
	require.NotNil(t, rec.Error)
	assert.Equal(t, expo.ErrorDeviceNotRegistered, *rec.Error)

	remaining, err := f.tokens.TokensFor(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestJob_Run_OtherErrorsKeepToken(t *testing.T) {
	f := newJobFixture(t)
	value := "ExponentPushToken[alive]"
	_, err := f.tokens.Register(context.Background(), "user-1", value, token.PlatformIOS, nil)
	require.NoError(t, err)

	f.addReceipt(t, "ticket-1", value, 20*time.Minute)
	f.gateway.verdicts["ticket-1"] = errorVerdict("MessageTooBig")

	result := f.job.Run(context.Background())

	assert.Equal(t, 1, result.Errored)
	assert.Equal(t, 0, result.TokensDeleted)

	remaining, err := f.tokens.TokensFor(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestJob_Run_GatewayNotConfigured(t *testing.T) {
	f := newJobFixture(t)
	f.gateway.configured = false
	f.addReceipt(t, "ticket-1", "ExponentPushToken[aaa]", 20*time.Minute)

	result := f.job.Run(context.Background())

	assert.Equal(t, 0, result.Checked)
	assert.Empty(t, f.gateway.requested)
}

func TestJob_Run_GatewayFailureLeavesReceiptsPending(t *testing.T) {
	f := newJobFixture(t)
	f.addReceipt(t, "ticket-1", "ExponentPushToken[aaa]", 20*time.Minute)
	f.gateway.err = errors.New("gateway unavailable")

	result := f.job.Run(context.Background())

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "gateway unavailable")

	rec, err := f.receipts.GetByTicketID(context.Background(), "ticket-1")
	require.NoError(t, err)
	assert.Equal(t, receipt.StatusPending, rec.Status)
}

func TestJob_Cleanup_SweepsExpiredRows(t *testing.T) {
	f := newJobFixture(t)

	// A resolved receipt over the retention age goes, a fresh pending
	// one stays.
	f.addReceipt(t, "old", "ExponentPushToken[aaa]", 25*time.Hour)
	f.addReceipt(t, "recent", "ExponentPushToken[bbb]", 23*time.Hour)

	require.NoError(t, f.rates.Create(context.Background(), &ratelimit.Record{
		ID:        "rate-1",
		UserID:    "user-1",
		CreatedAt: time.Now().Add(-time.Hour),
	}))

	result := f.job.Cleanup(context.Background())

	assert.Empty(t, result.Errors)
	assert.Equal(t, int64(1), result.ReceiptsDeleted)
	assert.Equal(t, int64(1), result.RateRecordsDeleted)

	_, err := f.receipts.GetByTicketID(context.Background(), "old")
	assert.ErrorIs(t, err, receipt.ErrReceiptNotFound)

	_, err = f.receipts.GetByTicketID(context.Background(), "recent")
	assert.NoError(t, err)
}

func TestJob_MetricsAccumulateAcrossRuns(t *testing.T) {
	f := newJobFixture(t)
	f.addReceipt(t, "ticket-1", "ExponentPushToken[aaa]", 20*time.Minute)
	f.gateway.verdicts["ticket-1"] = okVerdict()

	f.job.Run(context.Background())
	f.job.Run(context.Background())

	m := f.job.GetMetrics()
	assert.Equal(t, int64(2), m.TotalRuns)
	assert.Equal(t, int64(1), m.ReceiptsChecked)
	assert.Equal(t, int64(1), m.ReceiptsOK)
}
