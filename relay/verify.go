package relay

import (
	"errors"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/mr-tron/base58"
)

// ErrBadSignature covers every way an envelope signature can fail: bad
// address encoding, bad signature encoding, or verification failure. The
// relay deliberately does not tell a prober which one.
var ErrBadSignature = errors.New("signature verification failed")

// verifySignature checks a detached base58 signature over the exact payload
// bytes as transmitted. The wallet address is the Ed25519 public key.
func verifySignature(walletAddress string, payload []byte, signatureB58 string) error {
	pub, err := base58.Decode(walletAddress)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return ErrBadSignature
	}
	sig, err := base58.Decode(signatureB58)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ErrBadSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), payload, sig) {
		return ErrBadSignature
	}
	return nil
}
