package walletmail

import (
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://relay.walletmail.io"
	defaultTimeout = 30 * time.Second
)

// clientConfig holds configuration for the client.
type clientConfig struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	retries    int
	retryOn    []int
	keyDir     string
	clock      func() time.Time
}

// listConfig holds configuration for mailbox listing.
type listConfig struct {
	unreadOnly  bool
	starredOnly bool
	limit       int
}

// Option configures the client.
type Option func(*clientConfig)

// ListOption configures mailbox listing.
type ListOption func(*listConfig)

// WithBaseURL sets the relay base URL.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the default timeout for relay calls.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRetries sets the number of retries for relay calls.
func WithRetries(count int) Option {
	return func(c *clientConfig) {
		c.retries = count
	}
}

// WithRetryOn sets the HTTP status codes that trigger a retry.
// Default: [408, 429, 500, 502, 503, 504]
func WithRetryOn(statusCodes []int) Option {
	return func(c *clientConfig) {
		c.retryOn = statusCodes
	}
}

// WithKeyDir sets the directory where decrypted key material is cached
// between sessions. Default: ~/.walletmail/keys
func WithKeyDir(dir string) Option {
	return func(c *clientConfig) {
		c.keyDir = dir
	}
}

// WithUnreadOnly limits a mailbox listing to unread messages.
func WithUnreadOnly() ListOption {
	return func(c *listConfig) {
		c.unreadOnly = true
	}
}

// WithStarredOnly limits a mailbox listing to starred messages.
func WithStarredOnly() ListOption {
	return func(c *listConfig) {
		c.starredOnly = true
	}
}

// WithLimit caps the number of messages returned by a listing.
func WithLimit(n int) ListOption {
	return func(c *listConfig) {
		c.limit = n
	}
}
