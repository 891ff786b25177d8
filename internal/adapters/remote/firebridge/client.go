// Package firebridge implements the remote store port against the moneta
// cloud sync API, a REST facade over the hosted document store. Documents are
// keyed by server-assigned IDs; local integer IDs never appear on the wire.
package firebridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/monetalabs/moneta/internal/domain/errors"
	"github.com/monetalabs/moneta/internal/infrastructure/logging"
	"github.com/monetalabs/moneta/internal/infrastructure/tracing"
)

// Config holds configuration for the sync API client.
type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	Logger         *logging.Logger
	Tracer         *tracing.Tracer
}

// Client handles HTTP communication with the sync API.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     *logging.Logger
	tracer     *tracing.Tracer
}

// NewClient creates a new sync API client.
func NewClient(config Config) *Client {
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = 500 * time.Millisecond
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.Default()
	}
	tracer := config.Tracer
	if tracer == nil {
		tracer = tracing.Default()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
		logger: logger,
		tracer: tracer,
	}
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
// Rate limits (429) and server errors (5xx) are retried; everything else is
// returned to the caller for status handling. Each call produces one request
// span covering all attempts.
func (c *Client) doRequestWithRetry(ctx context.Context, method, collection, path string, body []byte) (*http.Response, error) {
	logging.LogRemoteRequest(ctx, c.logger, method, collection)
	ctx, span := c.tracer.StartRequestSpan(ctx, method, collection)

	var lastErr error
	baseDelay := c.config.RetryBaseDelay
	retries := 0

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			retries++
			tracing.AddEvent(ctx, "remote.retry")
			// Exponential backoff: base, 2x, 4x...
			delay := baseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				span.EndWithError(ctx.Err())
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := c.newRequest(ctx, method, path, body)
		if err != nil {
			span.EndWithError(err)
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = errors.NewError(errors.CodeNetwork, "request failed", err)
			tracing.RecordError(ctx, lastErr)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			tracing.RecordError(ctx, lastErr)
			continue
		}

		span.SetStatusCode(resp.StatusCode)
		span.SetRetries(retries)
		span.End()
		return resp, nil
	}

	err := errors.NewError(errors.CodeRemote,
		fmt.Sprintf("request failed after %d attempts", c.config.MaxRetries+1), lastErr)
	span.SetRetries(retries)
	span.EndWithError(err)
	return nil, err
}

// newRequest creates a new HTTP request with required headers.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	url := c.config.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, errors.NewError(errors.CodeRemote, "failed to create request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	return req, nil
}

// handleErrorResponse extracts error information from an error response.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewError(errors.CodeRemote,
			fmt.Sprintf("HTTP %d: failed to read error response", resp.StatusCode), err)
	}

	var errResp errorResponse
	message := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.NewError(errors.CodeAuth,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, message), errors.ErrNotAuthenticated)
	case http.StatusNotFound:
		return errors.NewError(errors.CodeNotFound,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, message), errors.ErrRecordNotFound)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return errors.NewError(errors.CodeValidation,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, message), nil)
	default:
		return errors.NewError(errors.CodeRemote,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, message), nil)
	}
}

// HealthCheck performs a lightweight check to verify API connectivity.
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.doRequestWithRetry(ctx, http.MethodGet, "health", "/v1/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp)
	}
	return nil
}
