package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/julianstephens/daystreak/internal/constants"
	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/models"
)

// Client talks to the sync server's /load-data and /save-data endpoints
type Client struct {
	baseURL   string
	http      *http.Client
	attempts  int
	baseDelay time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetry sets the number of attempts and the linear backoff base
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.baseDelay = baseDelay
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: constants.SyncRequestTimeout},
		attempts:  constants.SyncMaxRetries,
		baseDelay: constants.SyncRetryBaseDelay,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// statusError is a non-2xx response
// ErrResponseTooLarge is returned when a response body exceeds ServerMaxBodyBytes
var ErrResponseTooLarge = errors.New("response too large")

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("server returned %d", e.status)
	}
	return fmt.Sprintf("server returned %d: %s", e.status, e.body)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= 500 || se.status == http.StatusTooManyRequests
	}
	return !errors.Is(err, apperrors.ErrUnauthorized) &&
		!errors.Is(err, apperrors.ErrValidation) &&
		!errors.Is(err, ErrResponseTooLarge)
}

// Load fetches the user's snapshot. Missing fields default to empty.
func (c *Client) Load(ctx context.Context, token string) (models.Snapshot, error) {
	var snap models.Snapshot
	err := c.withRetry(ctx, "load-data", func() error {
		body, err := c.do(ctx, http.MethodGet, "/load-data", token, nil)
		if err != nil {
			return err
		}
		snap = models.Snapshot{}
		if err := json.Unmarshal(body, &snap); err != nil {
			return fmt.Errorf("%w: malformed response: %v", apperrors.ErrValidation, err)
		}
		return nil
	})
	if err != nil {
		return models.Snapshot{}, err
	}
	snap.Normalize()
	return snap, nil
}

// Save replaces the user's snapshot on the server. It returns only after the
// server has acknowledged the write.
func (c *Client) Save(ctx context.Context, token string, snap models.Snapshot) error {
	snap.Normalize()
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return c.withRetry(ctx, "save-data", func() error {
		body, err := c.do(ctx, http.MethodPost, "/save-data", token, payload)
		if err != nil {
			return err
		}
		var ack struct {
			Success bool `json:"success"`
		}
		if err := json.Unmarshal(body, &ack); err != nil || !ack.Success {
			return fmt.Errorf("save was not acknowledged")
		}
		return nil
	})
}

// Health checks that the server is reachable
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", "", nil)
	return err
}

func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(lastErr) {
			break
		}
		if attempt == c.attempts {
			return fmt.Errorf("%w: %s failed after %d attempts: %v", apperrors.ErrTransient, op, attempt, lastErr)
		}
		logger.Debug("Retrying remote call", "op", op, "attempt", attempt, "error", lastErr)
		if err := c.sleep(ctx, c.baseDelay*time.Duration(attempt)); err != nil {
			return err
		}
	}

	var se *statusError
	if errors.As(lastErr, &se) {
		return fmt.Errorf("%w: %s rejected: %v", apperrors.ErrValidation, op, lastErr)
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, method, path, token string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, constants.ServerMaxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > constants.ServerMaxBodyBytes {
		return nil, fmt.Errorf("%w: %s %s returned more than %d bytes", ErrResponseTooLarge, method, path, constants.ServerMaxBodyBytes)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, apperrors.ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
