package crypto

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
)

// KeyPair holds an RSA keypair together with its transport encoding.
type KeyPair struct {
	// PublicKey is the parsed public key handle.
	PublicKey *rsa.PublicKey
	// PrivateKey is the parsed private key handle.
	PrivateKey *rsa.PrivateKey
	// PublicKeyB64 is the SPKI export of the public key as standard base64.
	PublicKeyB64 string
}

// GenerateKeyPair creates a fresh RSA-2048 keypair for OAEP encryption of
// short payloads.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(randReader, RSAKeyBits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	pubB64, err := ExportPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	return &KeyPair{
		PublicKey:    &priv.PublicKey,
		PrivateKey:   priv,
		PublicKeyB64: pubB64,
	}, nil
}

// KeyPairFromPrivateKey reconstructs a keypair from a PKCS8 base64 export.
// The public half is derived from the private key.
func KeyPairFromPrivateKey(privB64 string) (*KeyPair, error) {
	priv, err := ImportPrivateKey(privB64)
	if err != nil {
		return nil, err
	}

	pubB64, err := ExportPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}

	return &KeyPair{
		PublicKey:    &priv.PublicKey,
		PrivateKey:   priv,
		PublicKeyB64: pubB64,
	}, nil
}

// ExportPublicKey encodes a public key as base64 SPKI.
func ExportPublicKey(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	return ToBase64(der), nil
}

// ExportPrivateKey encodes a private key as base64 PKCS8.
func ExportPrivateKey(priv *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", err
	}
	return ToBase64(der), nil
}

// ImportPublicKey parses a base64 SPKI public key.
func ImportPublicKey(b64 string) (*rsa.PublicKey, error) {
	der, err := FromBase64(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA public key", ErrInvalidKeyFormat)
	}
	return pub, nil
}

// ImportPrivateKey parses a base64 PKCS8 private key.
func ImportPrivateKey(b64 string) (*rsa.PrivateKey, error) {
	der, err := FromBase64(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA private key", ErrInvalidKeyFormat)
	}
	return priv, nil
}

// EncryptRSA encrypts a UTF-8 plaintext under the public key with OAEP-SHA256
// and returns base64 ciphertext. Plaintexts above the single-block capacity
// are rejected; arbitrary-length payloads belong in the symmetric cipher.
func EncryptRSA(plaintext string, pub *rsa.PublicKey) (string, error) {
	data := []byte(plaintext)
	if len(data) > RSAMaxPlaintextSize {
		return "", fmt.Errorf("%w: %d bytes, capacity %d", ErrPlaintextTooLarge, len(data), RSAMaxPlaintextSize)
	}

	ct, err := rsa.EncryptOAEP(sha256.New(), randReader, pub, data, nil)
	if err != nil {
		return "", fmt.Errorf("asymmetric encrypt: %w", err)
	}
	return ToBase64(ct), nil
}

// DecryptRSA decrypts a base64 OAEP ciphertext. Failure means the key does
// not match or the ciphertext is corrupt; callers surface this as "wrong key",
// never as a network problem.
func DecryptRSA(ciphertext string, priv *rsa.PrivateKey) (string, error) {
	ct, err := FromBase64(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext encoding", ErrDecryptionFailed)
	}

	data, err := rsa.DecryptOAEP(sha256.New(), nil, priv, ct, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(data), nil
}

// Fingerprint returns the SHA-256 hex digest of a base64 SPKI public key.
// Used in key-event payloads and CLI output.
func Fingerprint(publicKeyB64 string) string {
	sum := sha256.Sum256([]byte(publicKeyB64))
	return hex.EncodeToString(sum[:])
}
