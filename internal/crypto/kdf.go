package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// DeriveKeyFromPassword stretches a user-chosen password into a 256-bit AES
// key with PBKDF2-SHA256. The iteration count is deliberately high so
// brute-forcing exported key backups is impractical.
func DeriveKeyFromPassword(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, AESKeySize, sha256.New)
}

// EncryptWithPassword encrypts a payload under a password-derived key and
// packs the result as salt(16) || iv(12) || ciphertext, base64-encoded.
// This packed layout is the interop contract for protected key export files;
// the salt is random per export and never reused.
func EncryptWithPassword(payload, password string) (string, error) {
	salt := make([]byte, PasswordSaltSize)
	if _, err := io.ReadFull(randReader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := DeriveKeyFromPassword(password, salt)
	ciphertext, iv, err := EncryptAESGCM([]byte(payload), key)
	if err != nil {
		return "", err
	}

	packed := make([]byte, 0, len(salt)+len(iv)+len(ciphertext))
	packed = append(packed, salt...)
	packed = append(packed, iv...)
	packed = append(packed, ciphertext...)
	return ToBase64(packed), nil
}

// DecryptWithPassword unpacks and decrypts a payload produced by
// EncryptWithPassword. A wrong password and corrupt data are
// indistinguishable through the AEAD tag, so both surface as ErrWrongPassword.
func DecryptWithPassword(packed, password string) (string, error) {
	raw, err := FromBase64(packed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPackedFormat, err)
	}
	if len(raw) < PasswordSaltSize+AESNonceSize+AESTagSize {
		return "", ErrInvalidPackedFormat
	}

	salt := raw[:PasswordSaltSize]
	iv := raw[PasswordSaltSize : PasswordSaltSize+AESNonceSize]
	ciphertext := raw[PasswordSaltSize+AESNonceSize:]

	key := DeriveKeyFromPassword(password, salt)
	plaintext, err := DecryptAESGCM(ciphertext, key, iv)
	if err != nil {
		return "", ErrWrongPassword
	}
	return string(plaintext), nil
}

// KeyDerivationMessage returns the fixed, versioned message a wallet signs to
// derive its key-wrapping key.
func KeyDerivationMessage(address string) []byte {
	return []byte(KeyDerivationMessagePrefix + address)
}

// DeriveKeyFromSignature stretches the first 32 bytes of a wallet signature
// into a 256-bit AES key with a fixed application salt. Determinism is the
// contract: the same wallet signing the same fixed message must always yield
// the same key, because that key must later unwrap a previously wrapped
// private key with no other secret available.
func DeriveKeyFromSignature(signature []byte) ([]byte, error) {
	if len(signature) < WalletSignaturePrefixSize {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrInvalidSignatureSize, len(signature), WalletSignaturePrefixSize)
	}
	seed := signature[:WalletSignaturePrefixSize]
	return pbkdf2.Key(seed, walletDerivationSalt, PBKDF2Iterations, AESKeySize, sha256.New), nil
}
