package walletmail

import (
	"context"
	"fmt"
	"sync"

	"github.com/walletmail/client-go/internal/api"
	"github.com/walletmail/client-go/internal/crypto"
	"github.com/walletmail/client-go/internal/keystore"
)

// KeyState is the current position in the key setup state machine.
type KeyState int

const (
	// KeyStateUninitialized means setup has not started or was cancelled.
	KeyStateUninitialized KeyState = iota
	// KeyStateCheckingLocal means the local key cache is being consulted.
	KeyStateCheckingLocal
	// KeyStateCheckingRemote means the escrow record is being fetched.
	KeyStateCheckingRemote
	// KeyStateRestoring means an escrowed key is being unwrapped.
	KeyStateRestoring
	// KeyStateMigrating means legacy key material is being upgraded to
	// wallet-wrapped escrow.
	KeyStateMigrating
	// KeyStateProvisioning means a new keypair is being generated and escrowed.
	KeyStateProvisioning
	// KeyStateReady means a usable keypair is loaded.
	KeyStateReady
	// KeyStateError means setup failed in a way that must not be papered
	// over by regenerating keys.
	KeyStateError
)

// String returns the state name.
func (s KeyState) String() string {
	switch s {
	case KeyStateUninitialized:
		return "uninitialized"
	case KeyStateCheckingLocal:
		return "checkingLocal"
	case KeyStateCheckingRemote:
		return "checkingRemote"
	case KeyStateRestoring:
		return "restoring"
	case KeyStateMigrating:
		return "migrating"
	case KeyStateProvisioning:
		return "provisioning"
	case KeyStateReady:
		return "ready"
	case KeyStateError:
		return "error"
	default:
		return fmt.Sprintf("KeyState(%d)", int(s))
	}
}

// RotationConfirmPhrase is the exact phrase RotateKeys requires. Rotation
// permanently orphans all existing ciphertext, so it cannot be triggered by
// a stray boolean.
const RotationConfirmPhrase = "rotate my keys and lose access to existing mail"

// keyManager drives the key setup state machine for one wallet. All
// transitions run under mu, so concurrent EnsureKeys calls serialize and
// the wallet is never prompted twice for the same setup.
type keyManager struct {
	client *Client

	mu    sync.Mutex
	state KeyState
	pair  *crypto.KeyPair
}

func newKeyManager(c *Client) *keyManager {
	return &keyManager{client: c, state: KeyStateUninitialized}
}

// State returns the current key state.
func (m *keyManager) State() KeyState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// keyPair returns the active keypair, or ErrKeysNotReady.
func (m *keyManager) keyPair() (*crypto.KeyPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != KeyStateReady || m.pair == nil {
		return nil, ErrKeysNotReady
	}
	return m.pair, nil
}

// forget drops the in-memory keypair and resets the state machine.
func (m *keyManager) forget() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = nil
	m.state = KeyStateUninitialized
}

// setup runs the state machine to completion. Idempotent: once ready, it
// returns immediately without prompting the wallet again.
func (m *keyManager) setup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == KeyStateReady && m.pair != nil {
		return nil
	}

	err := m.run(ctx)
	if err != nil {
		// A declined prompt cancels the attempt without poisoning the
		// machine; everything else parks it in the error state.
		if signatureDeclined(err) {
			m.state = KeyStateUninitialized
		} else {
			m.state = KeyStateError
		}
		return err
	}

	m.state = KeyStateReady
	return nil
}

// run performs the transitions. Caller holds mu.
func (m *keyManager) run(ctx context.Context) error {
	c := m.client
	address := c.wallet.Address()

	// Local fast path: a complete cached keypair makes the whole setup a
	// disk read.
	m.state = KeyStateCheckingLocal
	cached, err := c.store.Load(address)
	if err != nil {
		return &KeyLifecycleError{State: m.state, Err: err}
	}
	if cached.Complete() {
		pair, err := crypto.KeyPairFromPrivateKey(cached.PrivateKeyB64)
		if err != nil {
			return &KeyLifecycleError{State: m.state, Err: wrapError(err)}
		}
		m.pair = pair
		return nil
	}

	m.state = KeyStateCheckingRemote
	var resp api.GetEscrowResponse
	if err := c.invoke(ctx, api.ActionGetEscrow, api.GetEscrowRequest{WalletAddress: address}, &resp); err != nil {
		return &KeyLifecycleError{State: m.state, Err: err}
	}
	record := resp.Record
	if record != nil {
		if err := record.Validate(); err != nil {
			return &KeyLifecycleError{State: m.state, Err: err}
		}
	}

	legacy, err := c.store.LoadLegacy(address)
	if err != nil {
		return &KeyLifecycleError{State: m.state, Err: err}
	}

	switch {
	case record.HasWrappedKey():
		return m.restore(ctx, record)
	case legacy.Complete():
		return m.migrate(ctx, legacy)
	case record != nil:
		// An escrow record with a public key but no wrapped private key and
		// no legacy material means mail exists that this device can never
		// read. Generating a fresh keypair here would hide that; fail loudly
		// instead.
		m.state = KeyStateRestoring
		return &KeyLifecycleError{State: m.state, Err: ErrKeyRestoreFailed}
	default:
		return m.provision(ctx)
	}
}

// restore unwraps an escrowed private key using a wallet-derived key.
// Failure to unwrap is terminal for this attempt: a fresh keypair would
// silently orphan all existing mail.
func (m *keyManager) restore(ctx context.Context, record *api.EscrowRecord) error {
	m.state = KeyStateRestoring
	c := m.client

	wrapKey, err := m.deriveWrapKey(ctx)
	if err != nil {
		if signatureDeclined(err) {
			return err
		}
		return &KeyLifecycleError{State: m.state, Err: err}
	}

	ct, err := crypto.FromBase64(record.EncryptedPrivateKey)
	if err != nil {
		return &KeyLifecycleError{State: m.state, Err: fmt.Errorf("%w: %v", ErrKeyRestoreFailed, err)}
	}
	iv, err := crypto.FromBase64(record.IV)
	if err != nil {
		return &KeyLifecycleError{State: m.state, Err: fmt.Errorf("%w: %v", ErrKeyRestoreFailed, err)}
	}

	privB64, err := crypto.DecryptAESGCM(ct, wrapKey, iv)
	if err != nil {
		return &KeyLifecycleError{State: m.state, Err: fmt.Errorf("%w: unwrap: %v", ErrKeyRestoreFailed, err)}
	}

	pair, err := crypto.KeyPairFromPrivateKey(string(privB64))
	if err != nil {
		return &KeyLifecycleError{State: m.state, Err: fmt.Errorf("%w: %v", ErrKeyRestoreFailed, err)}
	}
	if record.PublicKey != "" && pair.PublicKeyB64 != record.PublicKey {
		return &KeyLifecycleError{State: m.state, Err: fmt.Errorf("%w: unwrapped key does not match escrowed public key", ErrKeyRestoreFailed)}
	}

	if err := m.cache(pair); err != nil {
		return &KeyLifecycleError{State: m.state, Err: err}
	}
	m.pair = pair
	c.events.notify(KeyEvent{Kind: KeyEventRestored, Fingerprint: crypto.Fingerprint(pair.PublicKeyB64)})
	return nil
}

// migrate upgrades legacy key material to wallet-wrapped escrow. The wallet
// signs the derivation message exactly once; after the escrow upsert
// succeeds, the legacy entry is deleted so migration can never run twice.
func (m *keyManager) migrate(ctx context.Context, legacy *keystore.CachedKeys) error {
	m.state = KeyStateMigrating
	c := m.client

	pair, err := crypto.KeyPairFromPrivateKey(legacy.PrivateKeyB64)
	if err != nil {
		return &KeyLifecycleError{State: m.state, Err: wrapError(err)}
	}

	if err := m.escrow(ctx, pair); err != nil {
		return err
	}

	if err := m.cache(pair); err != nil {
		return &KeyLifecycleError{State: m.state, Err: err}
	}
	if err := c.store.DeleteLegacy(c.wallet.Address()); err != nil {
		return &KeyLifecycleError{State: m.state, Err: err}
	}

	m.pair = pair
	c.events.notify(KeyEvent{Kind: KeyEventMigrated, Fingerprint: crypto.Fingerprint(pair.PublicKeyB64)})
	return nil
}

// provision generates a fresh keypair and escrows it.
func (m *keyManager) provision(ctx context.Context) error {
	m.state = KeyStateProvisioning
	c := m.client

	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		return &KeyLifecycleError{State: m.state, Err: wrapError(err)}
	}

	if err := m.escrow(ctx, pair); err != nil {
		return err
	}
	if err := m.cache(pair); err != nil {
		return &KeyLifecycleError{State: m.state, Err: err}
	}

	m.pair = pair
	c.events.notify(KeyEvent{Kind: KeyEventGenerated, Fingerprint: crypto.Fingerprint(pair.PublicKeyB64)})
	return nil
}

// escrow wraps pair's private key under a wallet-derived key and upserts
// the escrow record.
func (m *keyManager) escrow(ctx context.Context, pair *crypto.KeyPair) error {
	c := m.client

	wrapKey, err := m.deriveWrapKey(ctx)
	if err != nil {
		if signatureDeclined(err) {
			return err
		}
		return &KeyLifecycleError{State: m.state, Err: err}
	}

	privB64, err := crypto.ExportPrivateKey(pair.PrivateKey)
	if err != nil {
		return &KeyLifecycleError{State: m.state, Err: wrapError(err)}
	}
	ct, iv, err := crypto.EncryptAESGCM([]byte(privB64), wrapKey)
	if err != nil {
		return &KeyLifecycleError{State: m.state, Err: wrapError(err)}
	}

	now := c.now().UTC()
	req := api.UpsertEscrowRequest{Record: api.EscrowRecord{
		WalletAddress:       c.wallet.Address(),
		PublicKey:           pair.PublicKeyB64,
		EncryptedPrivateKey: crypto.ToBase64(ct),
		IV:                  crypto.ToBase64(iv),
		KeyCreatedAt:        now,
		UpdatedAt:           now,
	}}
	// The relay refuses token-authenticated escrow writes; replacing the
	// key record needs a fresh wallet signature over the payload.
	if err := c.invokeSigned(ctx, api.ActionUpsertEscrow, req, nil); err != nil {
		return &KeyLifecycleError{State: m.state, Err: err}
	}
	return nil
}

// deriveWrapKey asks the wallet to sign the fixed derivation message and
// derives the key-wrapping key from the signature. The message is constant
// per wallet, so a deterministic signer always yields the same key.
func (m *keyManager) deriveWrapKey(ctx context.Context) ([]byte, error) {
	c := m.client
	msg := crypto.KeyDerivationMessage(c.wallet.Address())
	sig, err := c.wallet.Sign(ctx, msg)
	if err != nil {
		if signatureDeclined(err) {
			return nil, err
		}
		return nil, fmt.Errorf("wallet signing: %w", err)
	}
	return crypto.DeriveKeyFromSignature(sig)
}

// cache persists the keypair to the durable local store.
func (m *keyManager) cache(pair *crypto.KeyPair) error {
	privB64, err := crypto.ExportPrivateKey(pair.PrivateKey)
	if err != nil {
		return wrapError(err)
	}
	return m.client.store.Save(m.client.wallet.Address(), &keystore.CachedKeys{
		PrivateKeyB64: privB64,
		PublicKeyB64:  pair.PublicKeyB64,
	})
}

// adopt installs an externally provided keypair (import, rotation) as the
// active one and caches it.
func (m *keyManager) adopt(pair *crypto.KeyPair, kind KeyEventKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.cache(pair); err != nil {
		return err
	}
	m.pair = pair
	m.state = KeyStateReady
	m.client.events.notify(KeyEvent{Kind: kind, Fingerprint: crypto.Fingerprint(pair.PublicKeyB64)})
	return nil
}

// EnsureKeys runs key setup to completion: local cache, escrow restore,
// legacy migration, or first-time provisioning, whichever applies. It is
// idempotent and safe to call before every session.
func (c *Client) EnsureKeys(ctx context.Context) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	return c.keys.setup(ctx)
}

// KeyState returns the current position in the key setup state machine.
func (c *Client) KeyState() KeyState {
	return c.keys.State()
}

// KeyFingerprint returns the SHA-256 hex fingerprint of the active public
// key, for display and cross-device comparison.
func (c *Client) KeyFingerprint() (string, error) {
	pair, err := c.keys.keyPair()
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(pair.PublicKeyB64), nil
}

// RotateKeys generates a fresh keypair and replaces the escrowed record.
// Mail encrypted under the old key becomes permanently unreadable, so the
// caller must pass RotationConfirmPhrase verbatim.
func (c *Client) RotateKeys(ctx context.Context, confirm string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if confirm != RotationConfirmPhrase {
		return ErrRotationNotConfirmed
	}

	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		return wrapError(err)
	}

	c.keys.mu.Lock()
	err = c.keys.escrow(ctx, pair)
	c.keys.mu.Unlock()
	if err != nil {
		return err
	}

	return c.keys.adopt(pair, KeyEventRotated)
}
