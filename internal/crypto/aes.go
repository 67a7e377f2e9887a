package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"
)

// GenerateSymmetricKey returns a fresh random 256-bit key for one file.
func GenerateSymmetricKey() ([]byte, error) {
	key := make([]byte, AESKeySize)
	if _, err := io.ReadFull(randReader, key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	return key, nil
}

// EncryptAESGCM encrypts plaintext with AES-256-GCM under a fresh random
// 96-bit nonce and returns the ciphertext (tag appended) and the nonce
// separately. The nonce is always drawn from the random source, never derived
// from content: nonce reuse under the same key breaks GCM entirely.
func EncryptAESGCM(plaintext, key []byte) (ciphertext, iv []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	iv = make([]byte, AESNonceSize)
	if _, err := io.ReadFull(randReader, iv); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}

	return aead.Seal(nil, iv, plaintext, nil), iv, nil
}

// DecryptAESGCM decrypts an AES-256-GCM ciphertext. A tag mismatch surfaces
// as ErrDecryptionFailed; malformed key or nonce sizes surface as their own
// errors so callers can distinguish "wrong key material" from "corrupt data".
func DecryptAESGCM(ciphertext, key, iv []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(iv) != AESNonceSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidNonceSize, len(iv), AESNonceSize)
	}

	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), AESKeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
