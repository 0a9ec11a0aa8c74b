// Package expo provides a client for the Expo push gateway.
package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ramonclaudio/dreamseeker-sub000/internal/gateway/resilience"
)

const (
	// DefaultBaseURL is the base URL for the Expo push API.
	DefaultBaseURL = "https://exp.host/--/api/v2"

	// ProviderName identifies this provider.
	ProviderName = "expo"

	// MaxBatchSize is the gateway's hard cap on messages per dispatch call.
	MaxBatchSize = 100

	// MaxReceiptIDs is the gateway's cap on ticket ids per receipt lookup.
	MaxReceiptIDs = 1000
)

// ErrNotConfigured is returned when no gateway credential is configured.
var ErrNotConfigured = errors.New("expo: access token not configured")

// ClientConfig holds configuration for the Expo client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// AccessToken is the bearer credential for the push API. An empty
	// token leaves the client unconfigured; calls fail before any
	// network attempt.
	AccessToken string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Metrics records per-request gateway metrics when set.
	Metrics MetricsRecorder
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// MetricsRecorder records gateway request metrics.
type MetricsRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
}

// Client is an Expo push API client.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  HTTPDoer
	metrics     MetricsRecorder
}

// NewClient creates a new Expo client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		if cfg.Timeout != 0 {
			clientCfg.Timeout = cfg.Timeout
		}
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		accessToken: cfg.AccessToken,
		httpClient:  httpClient,
		metrics:     cfg.Metrics,
	}
}

// Configured reports whether a gateway credential is present.
func (c *Client) Configured() bool {
	return c.accessToken != ""
}

// API response envelopes.

type apiError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type publishResponse struct {
	Data   []Ticket   `json:"data"`
	Errors []apiError `json:"errors,omitempty"`
}

type receiptsRequest struct {
	IDs []string `json:"ids"`
}

type receiptsResponse struct {
	Data   map[string]Receipt `json:"data"`
	Errors []apiError         `json:"errors,omitempty"`
}

// Publish submits one batch of messages to the dispatch endpoint and
// returns the gateway tickets. Tickets are positionally aligned with the
// submitted messages: ticket[j] acknowledges msgs[j].
func (c *Client) Publish(ctx context.Context, msgs []Message) ([]Ticket, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	if len(msgs) > MaxBatchSize {
		return nil, fmt.Errorf("expo: batch of %d exceeds gateway cap of %d", len(msgs), MaxBatchSize)
	}

	var result publishResponse
	if err := c.post(ctx, "send", msgs, &result); err != nil {
		return nil, err
	}

	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("expo: push send rejected: %s", result.Errors[0].Message)
	}

	return result.Data, nil
}

// GetReceipts looks up delivery receipts for the given ticket ids.
// Receipts the gateway has not resolved yet are absent from the result.
func (c *Client) GetReceipts(ctx context.Context, ids []string) (map[string]Receipt, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if len(ids) == 0 {
		return map[string]Receipt{}, nil
	}
	if len(ids) > MaxReceiptIDs {
		return nil, fmt.Errorf("expo: %d receipt ids exceeds gateway cap of %d", len(ids), MaxReceiptIDs)
	}

	var result receiptsResponse
	if err := c.post(ctx, "getReceipts", receiptsRequest{IDs: ids}, &result); err != nil {
		return nil, err
	}

	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("expo: receipt lookup rejected: %s", result.Errors[0].Message)
	}

	return result.Data, nil
}

// post sends one JSON request and decodes the JSON response. Transport
// retries (429/5xx/network, Retry-After aware) live in the HTTP client.
func (c *Client) post(ctx context.Context, operation string, payload, out any) (err error) {
	if c.metrics != nil {
		start := time.Now()
		defer func() {
			c.metrics.RecordRequest(ProviderName, operation, time.Since(start), err)
		}()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	url := c.baseURL + "/push/" + operation
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expo: unexpected status %d from gateway", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}

	return nil
}
