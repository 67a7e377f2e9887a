package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestPasswordRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		password string
	}{
		{"key material", "MIIEvQIBADANBgkqhkiG9w0BAQEFAASC", "correct horse battery"},
		{"empty payload", "", "password1"},
		{"unicode password", "payload", "pässwörd-密码"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packed, err := EncryptWithPassword(tt.payload, tt.password)
			if err != nil {
				t.Fatalf("EncryptWithPassword() error = %v", err)
			}

			got, err := DecryptWithPassword(packed, tt.password)
			if err != nil {
				t.Fatalf("DecryptWithPassword() error = %v", err)
			}
			if got != tt.payload {
				t.Errorf("round trip = %q, want %q", got, tt.payload)
			}
		})
	}
}

func TestDecryptWithPassword_WrongPassword(t *testing.T) {
	packed, err := EncryptWithPassword("secret key", "right password")
	if err != nil {
		t.Fatalf("EncryptWithPassword() error = %v", err)
	}

	_, err = DecryptWithPassword(packed, "wrong password")
	if !errors.Is(err, ErrWrongPassword) {
		t.Errorf("error = %v, want ErrWrongPassword", err)
	}
}

func TestDecryptWithPassword_Truncated(t *testing.T) {
	_, err := DecryptWithPassword(ToBase64(make([]byte, PasswordSaltSize)), "pw")
	if !errors.Is(err, ErrInvalidPackedFormat) {
		t.Errorf("error = %v, want ErrInvalidPackedFormat", err)
	}
}

func TestEncryptWithPassword_SaltUniqueness(t *testing.T) {
	p1, err := EncryptWithPassword("same", "same")
	if err != nil {
		t.Fatalf("EncryptWithPassword() error = %v", err)
	}
	p2, err := EncryptWithPassword("same", "same")
	if err != nil {
		t.Fatalf("EncryptWithPassword() error = %v", err)
	}

	raw1, _ := FromBase64(p1)
	raw2, _ := FromBase64(p2)
	if bytes.Equal(raw1[:PasswordSaltSize], raw2[:PasswordSaltSize]) {
		t.Error("salt reused across exports")
	}
}

func TestPackedLayout(t *testing.T) {
	packed, err := EncryptWithPassword("x", "pw")
	if err != nil {
		t.Fatalf("EncryptWithPassword() error = %v", err)
	}
	raw, err := FromBase64(packed)
	if err != nil {
		t.Fatalf("packed blob is not valid base64: %v", err)
	}

	// salt(16) || iv(12) || ciphertext(1 byte + 16 byte tag)
	want := PasswordSaltSize + AESNonceSize + 1 + AESTagSize
	if len(raw) != want {
		t.Errorf("packed length = %d, want %d", len(raw), want)
	}
}

func TestDeriveKeyFromSignature_Deterministic(t *testing.T) {
	sig := bytes.Repeat([]byte{0xab}, 64)

	k1, err := DeriveKeyFromSignature(sig)
	if err != nil {
		t.Fatalf("DeriveKeyFromSignature() error = %v", err)
	}
	k2, err := DeriveKeyFromSignature(sig)
	if err != nil {
		t.Fatalf("DeriveKeyFromSignature() error = %v", err)
	}

	if !bytes.Equal(k1, k2) {
		t.Error("derived keys differ for identical signatures")
	}
	if len(k1) != AESKeySize {
		t.Errorf("derived key size = %d, want %d", len(k1), AESKeySize)
	}
}

func TestDeriveKeyFromSignature_UsesPrefixOnly(t *testing.T) {
	sig1 := bytes.Repeat([]byte{0x01}, 64)
	sig2 := append(bytes.Repeat([]byte{0x01}, WalletSignaturePrefixSize), bytes.Repeat([]byte{0xff}, 32)...)

	k1, err := DeriveKeyFromSignature(sig1)
	if err != nil {
		t.Fatalf("DeriveKeyFromSignature() error = %v", err)
	}
	k2, err := DeriveKeyFromSignature(sig2)
	if err != nil {
		t.Fatalf("DeriveKeyFromSignature() error = %v", err)
	}

	if !bytes.Equal(k1, k2) {
		t.Error("derivation depends on bytes beyond the 32-byte prefix")
	}
}

func TestDeriveKeyFromSignature_TooShort(t *testing.T) {
	_, err := DeriveKeyFromSignature(make([]byte, WalletSignaturePrefixSize-1))
	if !errors.Is(err, ErrInvalidSignatureSize) {
		t.Errorf("error = %v, want ErrInvalidSignatureSize", err)
	}
}

func TestKeyDerivationMessage(t *testing.T) {
	msg := KeyDerivationMessage("4Nd1mYQFn1Yfd1H4v5xEq3kXVfGmWgJc")
	want := "WalletMail Key Encryption v1\nWallet: 4Nd1mYQFn1Yfd1H4v5xEq3kXVfGmWgJc"
	if string(msg) != want {
		t.Errorf("message = %q, want %q", msg, want)
	}
}
