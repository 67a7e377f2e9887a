package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestSymmetricRoundTrip(t *testing.T) {
	key, err := GenerateSymmetricKey()
	if err != nil {
		t.Fatalf("GenerateSymmetricKey() error = %v", err)
	}

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", nil},
		{"small", []byte("attachment bytes")},
		{"binary", bytes.Repeat([]byte{0x00, 0xff, 0x42}, 1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, iv, err := EncryptAESGCM(tt.plaintext, key)
			if err != nil {
				t.Fatalf("EncryptAESGCM() error = %v", err)
			}
			if len(iv) != AESNonceSize {
				t.Errorf("iv size = %d, want %d", len(iv), AESNonceSize)
			}

			got, err := DecryptAESGCM(ct, key, iv)
			if err != nil {
				t.Fatalf("DecryptAESGCM() error = %v", err)
			}
			if !bytes.Equal(got, tt.plaintext) {
				t.Error("round trip mismatch")
			}
		})
	}
}

func TestEncryptAESGCM_NonceUniqueness(t *testing.T) {
	key, err := GenerateSymmetricKey()
	if err != nil {
		t.Fatalf("GenerateSymmetricKey() error = %v", err)
	}

	const trials = 1000
	seen := make(map[string]struct{}, trials)
	plaintext := []byte("same plaintext every time")

	for i := 0; i < trials; i++ {
		_, iv, err := EncryptAESGCM(plaintext, key)
		if err != nil {
			t.Fatalf("EncryptAESGCM() error = %v", err)
		}
		s := string(iv)
		if _, dup := seen[s]; dup {
			t.Fatalf("nonce collision after %d encryptions", i)
		}
		seen[s] = struct{}{}
	}
}

func TestDecryptAESGCM_Tampered(t *testing.T) {
	key, err := GenerateSymmetricKey()
	if err != nil {
		t.Fatalf("GenerateSymmetricKey() error = %v", err)
	}

	ct, iv, err := EncryptAESGCM([]byte("payload"), key)
	if err != nil {
		t.Fatalf("EncryptAESGCM() error = %v", err)
	}
	ct[0] ^= 0x01

	_, err = DecryptAESGCM(ct, key, iv)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("error = %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptAESGCM_BadSizes(t *testing.T) {
	key, err := GenerateSymmetricKey()
	if err != nil {
		t.Fatalf("GenerateSymmetricKey() error = %v", err)
	}
	ct, iv, err := EncryptAESGCM([]byte("payload"), key)
	if err != nil {
		t.Fatalf("EncryptAESGCM() error = %v", err)
	}

	if _, err := DecryptAESGCM(ct, key[:16], iv); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("short key error = %v, want ErrInvalidKeySize", err)
	}
	if _, err := DecryptAESGCM(ct, key, iv[:8]); !errors.Is(err, ErrInvalidNonceSize) {
		t.Errorf("short nonce error = %v, want ErrInvalidNonceSize", err)
	}
}
