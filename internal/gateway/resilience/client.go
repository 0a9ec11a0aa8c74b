package resilience

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for resilient operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies this client for circuit breaker naming.
	Name string

	// Timeout is the request timeout for individual HTTP calls.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxAttempts is the total number of delivery attempts, the first
	// one included. Default: 3
	MaxAttempts int

	// InitialInterval is the first retry backoff interval; each retry
	// doubles it. Default: 1 second
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 8 seconds
	MaxInterval time.Duration

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig
}

// DefaultClientConfig returns the retry policy used for gateway calls:
// 3 attempts total with 1s, 2s, 4s sleeps worst case (7s cumulative,
// bounded under 10s).
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     8 * time.Second,
		CircuitBreaker:  &cbConfig,
	}
}

// Client is a resilient HTTP client with circuit breaker and retry logic.
//
// HTTP 429 and 5xx responses and transport errors are retried; every other
// status is returned immediately. When a retryable response carries a
// Retry-After header its value replaces the backoff interval for that
// sleep. After the final attempt the last response (or error) is returned
// so the caller can classify the failure.
type Client struct {
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	config         ClientConfig
}

// NewClient creates a new resilient HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 1 * time.Second
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 8 * time.Second
	}

	var cb *gobreaker.CircuitBreaker[*http.Response]
	if cfg.CircuitBreaker != nil {
		cb = NewCircuitBreaker[*http.Response](*cfg.CircuitBreaker) //nolint:bodyclose // type param, not response
	} else {
		defaultCB := DefaultCircuitBreakerConfig(cfg.Name)
		cb = NewCircuitBreaker[*http.Response](defaultCB) //nolint:bodyclose // type param, not response
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: cb,
		config:         cfg,
	}
}

// Do executes an HTTP request with circuit breaker protection and retry
// logic. The backoff sleep blocks only this call tree, never other
// requests. Returns immediately with ErrCircuitOpen if the circuit
// breaker is open.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	bo := c.newBackOff()

	var (
		lastResp *http.Response
		lastErr  error
	)

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		// The breaker returns the response even on 5xx (wrapped in
		// ServerError) so Retry-After stays readable.
		resp, err := c.attempt(ctx, req)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}

		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		wait := bo.NextBackOff()
		if resp != nil {
			if ra, ok := retryAfter(resp); ok {
				wait = ra
			}
		}

		if attempt == c.config.MaxAttempts {
			// Exhausted: keep the final response readable for the caller.
			lastResp, lastErr = resp, err
		} else if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			if lastResp != nil {
				lastResp.Body.Close()
			}
			return nil, ctx.Err()
		}
	}

	// A 5xx surfaces as a response, not an error, once retries are spent;
	// only pure transport failures surface as errors.
	if lastResp != nil {
		return lastResp, nil
	}
	return nil, lastErr
}

// attempt executes a single request through the circuit breaker.
func (c *Client) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller is responsible for closing
		reqClone := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			reqClone.Body = body
		}

		resp, err := c.httpClient.Do(reqClone)
		if err != nil {
			return nil, err
		}

		// 5xx counts as a breaker failure even though it is returned.
		if resp.StatusCode >= 500 {
			return resp, &ServerError{StatusCode: resp.StatusCode}
		}

		return resp, nil
	})
}

// newBackOff builds the doubling backoff schedule for one call.
func (c *Client) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// retryableStatus reports whether a response status warrants another attempt.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// retryAfter extracts a Retry-After delay from a response, accepting both
// the delta-seconds and HTTP-date forms.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}

	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
	}

	return 0, false
}

// ServerError represents an HTTP 5xx server error.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}
