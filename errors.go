package walletmail

import (
	"errors"
	"fmt"
	"time"

	"github.com/walletmail/client-go/internal/api"
	"github.com/walletmail/client-go/internal/crypto"
)

// Sentinel errors for errors.Is() checks.
var (
	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = errors.New("client has been closed")

	// ErrKeysNotReady is returned when mail operations run before the key
	// lifecycle has reached the ready state.
	ErrKeysNotReady = errors.New("keys are not ready")

	// ErrKeyGeneration is returned when the cryptographic provider cannot
	// produce a keypair.
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrInvalidKeyFormat is returned when key material cannot be decoded.
	ErrInvalidKeyFormat = errors.New("invalid key format")

	// ErrDecryptionFailed is returned when content cannot be decrypted:
	// wrong key or corrupt ciphertext. Remediation is importing the correct
	// key, not retrying, so this is never folded into a generic failure.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrKeyMismatch is returned when imported key material does not belong
	// to this wallet's escrowed public key.
	ErrKeyMismatch = errors.New("key does not match this wallet")

	// ErrSignatureDeclined is returned when the user rejects a wallet
	// signing prompt. The current attempt is cancelled; prior key state is
	// untouched and the operation may be retried.
	ErrSignatureDeclined = errors.New("wallet signature declined")

	// ErrKeyRestoreFailed is returned when an escrowed key exists but cannot
	// be unwrapped. This never falls through to generating a new key; that
	// would silently orphan all previously sent and received mail.
	ErrKeyRestoreFailed = errors.New("key restore failed")

	// ErrWrongPassword is returned when a protected key export cannot be
	// opened with the given password.
	ErrWrongPassword = errors.New("wrong password or corrupt data")

	// ErrSizeLimitExceeded is returned when an attachment exceeds the
	// per-file or cumulative size limits.
	ErrSizeLimitExceeded = errors.New("attachment size limit exceeded")

	// ErrPlaintextTooLarge is returned when a subject or body exceeds the
	// asymmetric scheme's single-block capacity.
	ErrPlaintextTooLarge = errors.New("plaintext exceeds encryptable size")

	// ErrInvalidSignature is returned when the relay rejects a request
	// signature.
	ErrInvalidSignature = errors.New("invalid request signature")

	// ErrUnauthorized is returned when the wallet is not a party to the
	// requested resource.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when a message, draft, or key record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrKeyUnavailable is returned when decryption is requested but no
	// local private key is present.
	ErrKeyUnavailable = errors.New("no local private key available")

	// ErrRotationNotConfirmed is returned when key rotation is attempted
	// without the exact confirmation phrase. Rotation makes all previous
	// ciphertext permanently unreadable.
	ErrRotationNotConfirmed = errors.New("key rotation requires explicit confirmation")

	// ErrInvalidQRPayload is returned when a scanned payload does not carry
	// the key transfer prefix.
	ErrInvalidQRPayload = errors.New("not a WalletMail key QR payload")

	// ErrRateLimited is returned when the relay throttles the wallet.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// WalletMailError is implemented by all SDK error types.
type WalletMailError interface {
	error
	WalletMailError() // marker method
}

// APIError represents an HTTP error from the relay.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("relay error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("relay error %d", e.StatusCode)
}

// WalletMailError implements the WalletMailError interface.
func (e *APIError) WalletMailError() {}

// Is maps HTTP status codes to public sentinel errors.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case 401:
		return target == ErrInvalidSignature
	case 403:
		return target == ErrUnauthorized
	case 404:
		return target == ErrNotFound
	case 429:
		return target == ErrRateLimited
	}
	return false
}

// NetworkError represents a network-level failure reaching the relay.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// WalletMailError implements the WalletMailError interface.
func (e *NetworkError) WalletMailError() {}

// TimeoutError represents a relay call that exceeded its deadline.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Operation, e.Timeout)
}

// WalletMailError implements the WalletMailError interface.
func (e *TimeoutError) WalletMailError() {}

// SizeLimitError reports which attachment broke which limit.
type SizeLimitError struct {
	FileName   string
	SizeBytes  int64
	Limit      int64
	Cumulative bool
}

func (e *SizeLimitError) Error() string {
	if e.Cumulative {
		return fmt.Sprintf("attachment %q pushes total past %d bytes", e.FileName, e.Limit)
	}
	return fmt.Sprintf("attachment %q is %d bytes, limit %d", e.FileName, e.SizeBytes, e.Limit)
}

// Is implements errors.Is for sentinel error matching.
func (e *SizeLimitError) Is(target error) bool {
	return target == ErrSizeLimitExceeded
}

// WalletMailError implements the WalletMailError interface.
func (e *SizeLimitError) WalletMailError() {}

// KeyLifecycleError wraps a failure in the key setup state machine together
// with the state it occurred in.
type KeyLifecycleError struct {
	State KeyState
	Err   error
}

func (e *KeyLifecycleError) Error() string {
	return fmt.Sprintf("key lifecycle failed in state %s: %v", e.State, e.Err)
}

// Unwrap returns the underlying error.
func (e *KeyLifecycleError) Unwrap() error {
	return e.Err
}

// WalletMailError implements the WalletMailError interface.
func (e *KeyLifecycleError) WalletMailError() {}

// wrapError converts internal transport and crypto errors to public errors
// so that errors.Is() checks work with public sentinels.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
	}

	var netErr *api.NetworkError
	if errors.As(err, &netErr) {
		return &NetworkError{Err: netErr.Err, URL: netErr.URL, Attempt: netErr.Attempt}
	}

	var timeoutErr *api.TimeoutError
	if errors.As(err, &timeoutErr) {
		return &TimeoutError{Operation: timeoutErr.Operation, Timeout: timeoutErr.Timeout}
	}

	switch {
	case errors.Is(err, crypto.ErrDecryptionFailed):
		return ErrDecryptionFailed
	case errors.Is(err, crypto.ErrInvalidKeyFormat):
		return ErrInvalidKeyFormat
	case errors.Is(err, crypto.ErrPlaintextTooLarge):
		return ErrPlaintextTooLarge
	case errors.Is(err, crypto.ErrWrongPassword), errors.Is(err, crypto.ErrInvalidPackedFormat):
		return ErrWrongPassword
	case errors.Is(err, crypto.ErrKeyGeneration):
		return ErrKeyGeneration
	}

	return err
}
