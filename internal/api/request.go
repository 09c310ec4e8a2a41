package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rickgao/haltwatch/internal/version"
)

// IdempotencyHeader carries the per-operation token on mutation requests.
const IdempotencyHeader = "Idempotency-Key"

// APIError represents a non-2xx response from the halt API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
	Payload    *ErrorPayload // nil when the body is not a JSON error object
}

func (e *APIError) Error() string {
	return fmt.Sprintf("halt api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if a read should be retried.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IsUnauthorized reports a 401 response.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// TransportError means no HTTP response was obtained.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsUnauthorized reports whether err carries a 401 APIError.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsUnauthorized()
}

// newAPIError builds the error for a rejected response. The message is taken
// from message plus field errors, then error plus status, then the raw body,
// then the status text.
func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Body: body}

	var payload ErrorPayload
	if len(body) > 0 && body[0] == '{' && json.Unmarshal(body, &payload) == nil {
		apiErr.Payload = &payload
	}

	switch {
	case apiErr.Payload != nil && payload.Message != "":
		apiErr.Message = payload.Message
		if details := fieldErrors(payload.Errors); details != "" {
			apiErr.Message += ": " + details
		}
	case apiErr.Payload != nil && payload.Error != "":
		status := payload.Status
		if status == 0 {
			status = statusCode
		}
		apiErr.Message = fmt.Sprintf("%s (%d)", payload.Error, status)
	case len(bytes.TrimSpace(body)) > 0:
		apiErr.Message = strings.TrimSpace(string(body))
	default:
		apiErr.Message = fmt.Sprintf("request failed with status %d %s", statusCode, http.StatusText(statusCode))
	}

	return apiErr
}

func fieldErrors(errs []FieldError) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		msg := fe.Message
		if msg == "" {
			msg = fe.DefaultMessage
		}
		switch {
		case fe.Field != "" && msg != "":
			parts = append(parts, fe.Field+" "+msg)
		case msg != "":
			parts = append(parts, msg)
		case fe.Field != "":
			parts = append(parts, fe.Field)
		}
	}
	return strings.Join(parts, "; ")
}

// doRequest performs a single HTTP request. header may be nil.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body []byte, header http.Header) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("bearer token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "do request", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read response", Err: err}
	}

	if resp.StatusCode >= 400 {
		return nil, newAPIError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// doWithRetry performs a request with exponential backoff retry.
func (c *Client) doWithRetry(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := c.doRequest(ctx, method, path, query, nil, nil)
		if err == nil {
			return body, nil
		}

		lastErr = err

		// Transport errors and 5xx/429 are retried.
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if !apiErr.IsRetryable() {
				return nil, err
			}
		} else if !IsTransport(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// get performs a GET request with retries.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	body, err := c.doWithRetry(ctx, http.MethodGet, path, query)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}

// Post sends one JSON POST to path. A non-empty idempotencyKey is sent in
// the Idempotency-Key header. Non-2xx responses return *APIError; any other
// error means no response was obtained. Post never retries.
func (c *Client) Post(ctx context.Context, path, idempotencyKey string, body []byte) ([]byte, error) {
	if body == nil {
		body = []byte("{}")
	}
	var header http.Header
	if idempotencyKey != "" {
		header = http.Header{IdempotencyHeader: []string{idempotencyKey}}
	}
	return c.doRequest(ctx, http.MethodPost, path, nil, body, header)
}
