package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// DefaultTimeout is the per-request deadline imposed on relay calls.
const DefaultTimeout = 30 * time.Second

const relayPath = "/api/relay"

// Client posts signed envelopes to the relay endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      *RetryConfig
	timeout    time.Duration
}

// Option configures the API client.
type Option func(*Client)

// WithBaseURL sets the relay base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout sets the per-request deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRetryConfig replaces the retry policy.
func WithRetryConfig(cfg *RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// New creates a relay API client.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		httpClient: &http.Client{},
		retry:      DefaultRetryConfig(),
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("relay base URL is required")
	}
	return c, nil
}

// Invoke posts an envelope and decodes the success response into result.
// Transient server errors are retried with backoff; signature and
// authorization failures are returned immediately.
func (c *Client) Invoke(ctx context.Context, env *Envelope, result interface{}) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	url := c.baseURL + relayPath

	for attempt := 0; ; attempt++ {
		resp, err := c.post(ctx, url, body)
		if err != nil {
			if isTimeout(err) {
				return &TimeoutError{Operation: string(env.Action), Timeout: c.timeout}
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &NetworkError{Err: err, URL: url, Attempt: attempt}
		}

		if resp.StatusCode < 400 {
			return decodeResult(resp, result)
		}

		apiErr := parseErrorResponse(resp)
		if !c.retry.ShouldRetry(attempt, resp.StatusCode) {
			return apiErr
		}
		if err := c.retry.Wait(ctx, attempt); err != nil {
			return err
		}
	}
}

func (c *Client) post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	// Read eagerly so the per-call deadline covers the body too.
	data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp, nil
}

func decodeResult(resp *http.Response, result interface{}) error {
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseErrorResponse(resp *http.Response) *APIError {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(body))}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
