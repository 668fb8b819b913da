// Package httpapi is the JSON-over-HTTP plumbing shared by the library
// manager and media server clients.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"cinemastream/internal/domain"
	"cinemastream/internal/metrics"
)

const (
	maxErrorBody    = 1024
	maxResponseBody = 16 << 20
)

type Config struct {
	// Service labels metrics and error messages, e.g. "radarr".
	Service    string
	BaseURL    string
	AuthHeader string
	APIKey     string
	Client     *http.Client
	Attempts   uint
	RetryDelay time.Duration
}

type Client struct {
	service    string
	baseURL    string
	authHeader string
	apiKey     string
	http       *http.Client
	attempts   uint
	retryDelay time.Duration
}

// NewHTTPClient returns an http.Client whose transport is traced.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func New(cfg Config) *Client {
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 3
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 300 * time.Millisecond
	}
	return &Client{
		service:    cfg.Service,
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		authHeader: cfg.AuthHeader,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		http:       httpClient,
		attempts:   attempts,
		retryDelay: delay,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }
func (c *Client) APIKey() string  { return c.apiKey }

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Service string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s HTTP %d: %s", e.Service, e.Status, e.Body)
}

// GetJSON issues a GET and decodes the response into out. Transient failures
// (network errors, 429, 5xx) are retried.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return retry.Do(
		func() error {
			return c.do(ctx, http.MethodGet, path, query, nil, out)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
	)
}

// PostJSON issues a single POST. It is not retried since the caller cannot
// know whether the server acted on a failed attempt.
func (c *Client) PostJSON(ctx context.Context, path string, query url.Values, body any, out any) error {
	return c.do(ctx, http.MethodPost, path, query, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: %s base url not configured", domain.ErrUpstreamUnavailable, c.service)
	}
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s encode request: %w", c.service, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("%s build request: %w", c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authHeader != "" && c.apiKey != "" {
		req.Header.Set(c.authHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(c.service, "error").Inc()
		return fmt.Errorf("%w: %s request: %w", domain.ErrUpstreamUnavailable, c.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequestsTotal.WithLabelValues(c.service, fmt.Sprintf("%dxx", resp.StatusCode/100)).Inc()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{Service: c.service, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", domain.ErrNotFound, statusErr)
		}
		return fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, statusErr)
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(c.service, "ok").Inc()

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(out); err != nil {
		return fmt.Errorf("%w: %s decode response: %v", domain.ErrUpstreamUnavailable, c.service, err)
	}
	return nil
}

func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status == http.StatusTooManyRequests || statusErr.Status >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}
