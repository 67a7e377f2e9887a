package crypto

import "errors"

var (
	// ErrKeyGeneration is returned when the underlying provider cannot
	// produce a keypair.
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrInvalidKeyFormat is returned when imported key material cannot be
	// decoded or parsed.
	ErrInvalidKeyFormat = errors.New("invalid key format")

	// ErrPlaintextTooLarge is returned when a plaintext exceeds the OAEP
	// single-block capacity.
	ErrPlaintextTooLarge = errors.New("plaintext exceeds asymmetric block capacity")

	// ErrDecryptionFailed is returned when decryption fails: wrong key,
	// corrupt ciphertext, or AEAD tag mismatch.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidKeySize is returned when a symmetric key has the wrong size.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidNonceSize is returned when an AES-GCM nonce has the wrong size.
	ErrInvalidNonceSize = errors.New("invalid nonce size")

	// ErrWrongPassword is returned when a password-protected payload cannot
	// be opened. AEAD tag failure is the only signal available, so a wrong
	// password and corrupt data are indistinguishable here.
	ErrWrongPassword = errors.New("wrong password or corrupt data")

	// ErrInvalidPackedFormat is returned when a packed salt||iv||ciphertext
	// blob is too short to contain its fixed-width prefixes.
	ErrInvalidPackedFormat = errors.New("invalid packed payload format")

	// ErrInvalidSignatureSize is returned when a wallet signature is too
	// short to feed the wallet-key derivation.
	ErrInvalidSignatureSize = errors.New("wallet signature too short for key derivation")
)
