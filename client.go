package walletmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mr-tron/base58"

	"github.com/walletmail/client-go/internal/api"
	"github.com/walletmail/client-go/internal/keystore"
)

// sessionSkew is subtracted from the token expiry so a token that is about
// to expire is refreshed before the relay has a chance to reject it.
const sessionSkew = 30 * time.Second

// Client is the WalletMail client for one wallet identity.
type Client struct {
	wallet    WalletIdentity
	apiClient *api.Client
	store     keystore.Store
	keys      *keyManager
	events    *keyEventHub
	timeout   time.Duration
	now       func() time.Time

	mu           sync.RWMutex
	closed       bool
	sessionToken string
	sessionExp   time.Time
}

// buildAPIClient creates and configures a relay client from the given config.
func buildAPIClient(cfg *clientConfig) (*api.Client, error) {
	apiOpts := []api.Option{
		api.WithBaseURL(cfg.baseURL),
	}
	if cfg.timeout > 0 {
		apiOpts = append(apiOpts, api.WithTimeout(cfg.timeout))
	}
	if cfg.retries > 0 || len(cfg.retryOn) > 0 {
		retry := api.DefaultRetryConfig()
		if cfg.retries > 0 {
			retry.MaxRetries = cfg.retries
		}
		if len(cfg.retryOn) > 0 {
			retry.RetryOn = cfg.retryOn
		}
		apiOpts = append(apiOpts, api.WithRetryConfig(retry))
	}
	if cfg.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(cfg.httpClient))
	}
	return api.New(apiOpts...)
}

// defaultKeyDir returns the default location of the local key cache.
func defaultKeyDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".walletmail", "keys"), nil
}

// New creates a WalletMail client bound to the given wallet.
//
// New does not touch the network; key setup and authentication happen
// lazily, or eagerly via EnsureKeys.
func New(wallet WalletIdentity, opts ...Option) (*Client, error) {
	if wallet == nil {
		return nil, fmt.Errorf("wallet identity is required")
	}

	cfg := &clientConfig{
		baseURL: defaultBaseURL,
		timeout: defaultTimeout,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	apiClient, err := buildAPIClient(cfg)
	if err != nil {
		return nil, err
	}

	keyDir := cfg.keyDir
	if keyDir == "" {
		keyDir, err = defaultKeyDir()
		if err != nil {
			return nil, err
		}
	}
	store, err := keystore.NewFileStore(keyDir)
	if err != nil {
		return nil, fmt.Errorf("open key cache: %w", err)
	}

	c := &Client{
		wallet:    wallet,
		apiClient: apiClient,
		store:     store,
		events:    newKeyEventHub(),
		timeout:   cfg.timeout,
		now:       cfg.clock,
	}
	c.keys = newKeyManager(c)

	return c, nil
}

// Address returns the wallet address this client acts for.
func (c *Client) Address() string {
	return c.wallet.Address()
}

// OnKeyEvent registers a callback for key lifecycle events.
// Returns an unsubscribe function that must be called to clean up.
func (c *Client) OnKeyEvent(fn func(KeyEvent)) func() {
	return c.events.subscribe(fn)
}

// checkClosed returns ErrClientClosed if the client has been closed.
func (c *Client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// signPayload requests a detached wallet signature over the exact payload
// bytes and returns it base58-encoded.
func (c *Client) signPayload(ctx context.Context, payload []byte) (string, error) {
	sig, err := c.wallet.Sign(ctx, payload)
	if err != nil {
		if signatureDeclined(err) {
			return "", err
		}
		return "", fmt.Errorf("wallet signing: %w", err)
	}
	return base58.Encode(sig), nil
}

// cachedSession returns the session token if one is cached and not within
// sessionSkew of expiry.
func (c *Client) cachedSession() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sessionToken != "" && c.now().Before(c.sessionExp.Add(-sessionSkew)) {
		return c.sessionToken
	}
	return ""
}

// Authenticate obtains a session token from the relay by signing a
// timestamped challenge. The token is cached and attached to subsequent
// requests; callers rarely need to call this directly.
func (c *Client) Authenticate(ctx context.Context) error {
	if err := c.checkClosed(); err != nil {
		return err
	}

	payload, err := json.Marshal(api.AuthenticateRequest{
		WalletAddress: c.wallet.Address(),
		IssuedAt:      c.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal authenticate request: %w", err)
	}

	sig, err := c.signPayload(ctx, payload)
	if err != nil {
		return err
	}

	env := &api.Envelope{
		Action:          api.ActionAuthenticate,
		Data:            payload,
		Signature:       sig,
		WalletPublicKey: c.wallet.Address(),
	}

	var resp api.AuthenticateResponse
	if err := c.apiClient.Invoke(ctx, env, &resp); err != nil {
		return wrapError(err)
	}

	c.mu.Lock()
	c.sessionToken = resp.SessionToken
	c.sessionExp = resp.ExpiresAt
	c.mu.Unlock()

	return nil
}

// invoke sends one relay action. A cached session token is attached when
// valid; otherwise the client authenticates first. A 401 on a token that
// expired server-side triggers a single re-authentication and retry.
func (c *Client) invoke(ctx context.Context, action api.Action, payload, result interface{}) error {
	if err := c.checkClosed(); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", action, err)
	}

	token := c.cachedSession()
	if token == "" {
		if err := c.Authenticate(ctx); err != nil {
			return err
		}
		token = c.cachedSession()
	}

	err = c.invokeWithToken(ctx, action, data, token, result)
	if isInvalidToken(err) {
		if err := c.Authenticate(ctx); err != nil {
			return err
		}
		err = c.invokeWithToken(ctx, action, data, c.cachedSession(), result)
	}
	return err
}

func (c *Client) invokeWithToken(ctx context.Context, action api.Action, data []byte, token string, result interface{}) error {
	env := &api.Envelope{
		Action:          action,
		Data:            data,
		WalletPublicKey: c.wallet.Address(),
		SessionToken:    token,
	}
	if err := c.apiClient.Invoke(ctx, env, result); err != nil {
		return wrapError(err)
	}
	return nil
}

// invokeSigned sends one relay action authenticated by a fresh wallet
// signature over the payload bytes instead of a session token. Used for
// actions that must carry a signature regardless of session state.
func (c *Client) invokeSigned(ctx context.Context, action api.Action, payload, result interface{}) error {
	if err := c.checkClosed(); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", action, err)
	}

	sig, err := c.signPayload(ctx, data)
	if err != nil {
		return err
	}

	env := &api.Envelope{
		Action:          action,
		Data:            data,
		Signature:       sig,
		WalletPublicKey: c.wallet.Address(),
	}
	if err := c.apiClient.Invoke(ctx, env, result); err != nil {
		return wrapError(err)
	}
	return nil
}

// isInvalidToken reports whether err is a 401 eligible for one re-auth retry.
func isInvalidToken(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 401
}

// Close closes the client and releases resources. Decrypted key material
// cached on disk is left in place; use ForgetLocalKeys to remove it.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.sessionToken = ""
	c.events.clear()
	return nil
}

// ForgetLocalKeys deletes this wallet's cached key material from local
// storage. The escrowed copy on the relay is untouched; the next EnsureKeys
// restores from escrow.
func (c *Client) ForgetLocalKeys() error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	c.keys.forget()
	return c.store.Delete(c.wallet.Address())
}
