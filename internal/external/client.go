// Package external is the anti-corruption layer between the digest
// pipeline and third-party services: the mail providers and the calendar
// feed endpoints. Outbound HTTP goes through BaseClient, which enforces
// circuit breaking and maps transport failures onto the application error
// taxonomy. Retry policy deliberately lives with the caller (the shared
// retry executor), not here, so fetches and sends follow one backoff
// discipline.
package external

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"caldigest/internal/types"
)

// userAgent identifies the digest job to upstream services.
const userAgent = "caldigest/1.0"

// BaseClient wraps an *http.Client and a circuit breaker. After repeated
// consecutive failures against one upstream the breaker opens and calls
// fail fast with a rate-limited (transient) error until the upstream
// recovers.
type BaseClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewBaseClient creates a BaseClient with a named circuit breaker. The
// name shows up in breaker state transitions and should identify the
// upstream ("sendgrid", "ics-feed").
func NewBaseClient(httpClient *http.Client, breakerName string) *BaseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &BaseClient{
		client:  httpClient,
		breaker: cb,
	}
}

// Do executes the request through the circuit breaker with the User-Agent
// injected. Responses with status 429 or >= 500 are returned as AppErrors
// carrying transient codes so the caller's retry executor backs off and
// tries again; other statuses are returned as-is for the caller to
// interpret. The caller closes the response body.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, statusError(resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return nil, c.mapError(err)
	}

	return resp, nil
}

// statusError turns a retryable HTTP status into a typed transient error.
func statusError(status int) *types.AppError {
	if status == http.StatusTooManyRequests {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited,
			"upstream rate limit exceeded", nil)
	}
	return types.NewAppError(types.ErrCodeUpstreamUnavailable,
		fmt.Sprintf("upstream returned %d", status), nil)
}

// mapError translates breaker and transport failures into AppErrors.
func (c *BaseClient) mapError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited,
			"circuit breaker is open; upstream unavailable", err)
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	// Transport-level failure (DNS, connect, timeout). Treated as transient.
	return types.NewAppError(types.ErrCodeUpstreamUnavailable,
		"transport failure: "+err.Error(), err)
}
