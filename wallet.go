package walletmail

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/mr-tron/base58"
)

// WalletIdentity is the signing authority behind a mailbox. The address is
// the wallet's public key in base58 and doubles as the mail address.
//
// Sign must be deterministic: signing the same message twice must yield the
// same signature bytes. Key wrapping derives the encryption key from the
// signature, so a nondeterministic scheme would make escrowed keys
// unrecoverable. Ed25519 satisfies this; ECDSA with random nonces does not.
//
// Sign returns ErrSignatureDeclined (or an error wrapping it) when the user
// rejects the prompt.
type WalletIdentity interface {
	// Address returns the base58-encoded public key.
	Address() string

	// Sign produces a detached signature over message.
	Sign(ctx context.Context, message []byte) ([]byte, error)
}

// LocalWallet is a WalletIdentity backed by an in-process Ed25519 key.
// Browser and hardware wallets implement WalletIdentity themselves; this
// implementation serves CLI use and tests.
type LocalWallet struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	addr string
}

// NewLocalWallet generates a fresh Ed25519 wallet.
func NewLocalWallet() (*LocalWallet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	return &LocalWallet{
		priv: priv,
		pub:  pub,
		addr: base58.Encode(pub),
	}, nil
}

// LocalWalletFromSeed restores a wallet from a 32-byte Ed25519 seed.
func LocalWalletFromSeed(seed []byte) (*LocalWallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes, got %d",
			ErrInvalidKeyFormat, ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &LocalWallet{
		priv: priv,
		pub:  pub,
		addr: base58.Encode(pub),
	}, nil
}

// Address returns the base58-encoded public key.
func (w *LocalWallet) Address() string {
	return w.addr
}

// Sign produces a deterministic Ed25519 signature over message.
func (w *LocalWallet) Sign(_ context.Context, message []byte) ([]byte, error) {
	return ed25519.Sign(w.priv, message), nil
}

// Seed returns the wallet's 32-byte seed for backup.
func (w *LocalWallet) Seed() []byte {
	return w.priv.Seed()
}

// VerifyWalletSignature checks a detached base58 signature against a wallet
// address. The address itself is the Ed25519 public key.
func VerifyWalletSignature(address string, message []byte, signatureB58 string) error {
	pub, err := base58.Decode(address)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: bad wallet address", ErrInvalidSignature)
	}
	sig, err := base58.Decode(signatureB58)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: bad signature encoding", ErrInvalidSignature)
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), message, sig) {
		return ErrInvalidSignature
	}
	return nil
}

// signatureDeclined reports whether err represents a user-rejected prompt.
func signatureDeclined(err error) bool {
	return errors.Is(err, ErrSignatureDeclined)
}
