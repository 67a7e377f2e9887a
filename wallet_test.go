package walletmail

import (
	"bytes"
	"context"
	"testing"

	"github.com/mr-tron/base58"
)

func TestLocalWallet_DeterministicSignatures(t *testing.T) {
	wallet, err := NewLocalWallet()
	if err != nil {
		t.Fatalf("NewLocalWallet() error = %v", err)
	}

	msg := []byte("the same message")
	sig1, err := wallet.Sign(context.Background(), msg)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	sig2, err := wallet.Sign(context.Background(), msg)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if !bytes.Equal(sig1, sig2) {
		t.Error("same message produced different signatures")
	}
}

func TestLocalWallet_SeedRoundTrip(t *testing.T) {
	wallet, err := NewLocalWallet()
	if err != nil {
		t.Fatalf("NewLocalWallet() error = %v", err)
	}

	restored, err := LocalWalletFromSeed(wallet.Seed())
	if err != nil {
		t.Fatalf("LocalWalletFromSeed() error = %v", err)
	}
	if restored.Address() != wallet.Address() {
		t.Errorf("restored address = %s, want %s", restored.Address(), wallet.Address())
	}
}

func TestLocalWalletFromSeed_BadLength(t *testing.T) {
	_, err := LocalWalletFromSeed(make([]byte, 16))
	wantErrorIs(t, err, ErrInvalidKeyFormat)
}

func TestVerifyWalletSignature(t *testing.T) {
	wallet, err := NewLocalWallet()
	if err != nil {
		t.Fatalf("NewLocalWallet() error = %v", err)
	}

	msg := []byte("payload bytes")
	sig, _ := wallet.Sign(context.Background(), msg)
	sigB58 := base58.Encode(sig)

	if err := VerifyWalletSignature(wallet.Address(), msg, sigB58); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}

	err = VerifyWalletSignature(wallet.Address(), []byte("different payload"), sigB58)
	wantErrorIs(t, err, ErrInvalidSignature)

	other, _ := NewLocalWallet()
	err = VerifyWalletSignature(other.Address(), msg, sigB58)
	wantErrorIs(t, err, ErrInvalidSignature)

	err = VerifyWalletSignature("not-base58-0OIl", msg, sigB58)
	wantErrorIs(t, err, ErrInvalidSignature)
}

func TestAddress_IsBase58PublicKey(t *testing.T) {
	wallet, err := NewLocalWallet()
	if err != nil {
		t.Fatalf("NewLocalWallet() error = %v", err)
	}

	raw, err := base58.Decode(wallet.Address())
	if err != nil {
		t.Fatalf("address is not base58: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("decoded address is %d bytes, want 32", len(raw))
	}
}
