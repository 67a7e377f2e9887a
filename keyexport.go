package walletmail

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/walletmail/client-go/internal/api"
	"github.com/walletmail/client-go/internal/crypto"
)

// QRKeyPrefix marks a QR payload as a WalletMail key transfer.
const QRKeyPrefix = "walletmail:key:"

// ExportPrivateKey returns the active private key as base64 for transfer
// to another device. The caller is responsible for the channel; prefer
// ExportPrivateKeyProtected for anything that touches disk.
func (c *Client) ExportPrivateKey() (string, error) {
	pair, err := c.keys.keyPair()
	if err != nil {
		return "", err
	}
	return crypto.ExportPrivateKey(pair.PrivateKey)
}

// ExportPrivateKeyProtected returns the active private key encrypted under
// a password. The payload packs the KDF salt and cipher iv with the
// ciphertext, so the password alone recovers the key.
func (c *Client) ExportPrivateKeyProtected(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	privB64, err := c.ExportPrivateKey()
	if err != nil {
		return "", err
	}
	packed, err := crypto.EncryptWithPassword(privB64, password)
	if err != nil {
		return "", wrapError(err)
	}
	return packed, nil
}

// ExportPrivateKeyToFile writes a protected export to path with 0600
// permissions.
func (c *Client) ExportPrivateKeyToFile(path, password string) error {
	packed, err := c.ExportPrivateKeyProtected(password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(packed), 0600); err != nil {
		return fmt.Errorf("write key export: %w", err)
	}
	return nil
}

// ImportPrivateKey installs a private key exported from another device.
// The key is verified against the wallet's escrowed public key before
// anything is persisted; a key for a different wallet (or a stale one from
// before a rotation) returns ErrKeyMismatch.
func (c *Client) ImportPrivateKey(ctx context.Context, privB64 string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}

	pair, err := crypto.KeyPairFromPrivateKey(privB64)
	if err != nil {
		return wrapError(err)
	}

	var resp api.GetEscrowResponse
	if err := c.invoke(ctx, api.ActionGetEscrow, api.GetEscrowRequest{WalletAddress: c.wallet.Address()}, &resp); err != nil {
		return err
	}
	if resp.Record == nil || resp.Record.PublicKey == "" {
		return fmt.Errorf("%w: wallet has no escrowed key to match against", ErrKeyMismatch)
	}
	if pair.PublicKeyB64 != resp.Record.PublicKey {
		return ErrKeyMismatch
	}

	return c.keys.adopt(pair, KeyEventImported)
}

// ImportPrivateKeyProtected opens a password-protected export and installs
// the key. Returns ErrWrongPassword when the password does not match.
func (c *Client) ImportPrivateKeyProtected(ctx context.Context, packed, password string) error {
	privB64, err := crypto.DecryptWithPassword(packed, password)
	if err != nil {
		return wrapError(err)
	}
	return c.ImportPrivateKey(ctx, privB64)
}

// ImportPrivateKeyFromFile reads a protected export written by
// ExportPrivateKeyToFile.
func (c *Client) ImportPrivateKeyFromFile(ctx context.Context, path, password string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read key export: %w", err)
	}
	return c.ImportPrivateKeyProtected(ctx, strings.TrimSpace(string(data)), password)
}

// EncodeKeyQR returns the QR payload carrying the active private key.
// The payload is raw key material; it should only ever be rendered
// transiently on a trusted display.
func (c *Client) EncodeKeyQR() (string, error) {
	privB64, err := c.ExportPrivateKey()
	if err != nil {
		return "", err
	}
	return QRKeyPrefix + privB64, nil
}

// DecodeKeyQR extracts the private key from a scanned QR payload.
func DecodeKeyQR(payload string) (string, error) {
	if !strings.HasPrefix(payload, QRKeyPrefix) {
		return "", ErrInvalidQRPayload
	}
	privB64 := strings.TrimPrefix(payload, QRKeyPrefix)
	if privB64 == "" {
		return "", ErrInvalidQRPayload
	}
	return privB64, nil
}

// ImportKeyFromQR decodes a scanned QR payload and installs the key.
func (c *Client) ImportKeyFromQR(ctx context.Context, payload string) error {
	privB64, err := DecodeKeyQR(payload)
	if err != nil {
		return err
	}
	return c.ImportPrivateKey(ctx, privB64)
}
