package crypto

import (
	"errors"
	"strings"
	"testing"
)

func TestGenerateKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	if kp.PublicKey == nil || kp.PrivateKey == nil {
		t.Fatal("keypair has nil key handles")
	}
	if kp.PublicKeyB64 == "" {
		t.Error("PublicKeyB64 is empty")
	}
	if kp.PublicKey.N.BitLen() != RSAKeyBits {
		t.Errorf("modulus size = %d, want %d", kp.PublicKey.N.BitLen(), RSAKeyBits)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"short", "Hi"},
		{"empty", ""},
		{"unicode", "héllo wörld ✉"},
		{"max size", strings.Repeat("a", RSAMaxPlaintextSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, err := EncryptRSA(tt.plaintext, kp.PublicKey)
			if err != nil {
				t.Fatalf("EncryptRSA() error = %v", err)
			}

			got, err := DecryptRSA(ct, kp.PrivateKey)
			if err != nil {
				t.Fatalf("DecryptRSA() error = %v", err)
			}
			if got != tt.plaintext {
				t.Errorf("round trip = %q, want %q", got, tt.plaintext)
			}
		})
	}
}

func TestEncryptRSA_PlaintextTooLarge(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	_, err = EncryptRSA(strings.Repeat("a", RSAMaxPlaintextSize+1), kp.PublicKey)
	if !errors.Is(err, ErrPlaintextTooLarge) {
		t.Errorf("error = %v, want ErrPlaintextTooLarge", err)
	}
}

func TestDecryptRSA_WrongKey(t *testing.T) {
	kp1, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	kp2, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	ct, err := EncryptRSA("secret", kp1.PublicKey)
	if err != nil {
		t.Fatalf("EncryptRSA() error = %v", err)
	}

	_, err = DecryptRSA(ct, kp2.PrivateKey)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("error = %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptRSA_TamperedCiphertext(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	ct, err := EncryptRSA("secret", kp.PublicKey)
	if err != nil {
		t.Fatalf("EncryptRSA() error = %v", err)
	}

	raw, err := FromBase64(ct)
	if err != nil {
		t.Fatalf("FromBase64() error = %v", err)
	}
	raw[len(raw)/2] ^= 0x01

	_, err = DecryptRSA(ToBase64(raw), kp.PrivateKey)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("error = %v, want ErrDecryptionFailed", err)
	}
}

func TestExportImportKeys(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	privB64, err := ExportPrivateKey(kp.PrivateKey)
	if err != nil {
		t.Fatalf("ExportPrivateKey() error = %v", err)
	}

	restored, err := KeyPairFromPrivateKey(privB64)
	if err != nil {
		t.Fatalf("KeyPairFromPrivateKey() error = %v", err)
	}
	if restored.PublicKeyB64 != kp.PublicKeyB64 {
		t.Error("restored public key does not match original")
	}

	// Ciphertext created under the original key opens with the restored one.
	ct, err := EncryptRSA("carry over", kp.PublicKey)
	if err != nil {
		t.Fatalf("EncryptRSA() error = %v", err)
	}
	got, err := DecryptRSA(ct, restored.PrivateKey)
	if err != nil {
		t.Fatalf("DecryptRSA() error = %v", err)
	}
	if got != "carry over" {
		t.Errorf("round trip through export = %q", got)
	}
}

func TestImportKeys_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"not DER", ToBase64([]byte("garbage"))},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ImportPublicKey(tt.input); !errors.Is(err, ErrInvalidKeyFormat) {
				t.Errorf("ImportPublicKey() error = %v, want ErrInvalidKeyFormat", err)
			}
			if _, err := ImportPrivateKey(tt.input); !errors.Is(err, ErrInvalidKeyFormat) {
				t.Errorf("ImportPrivateKey() error = %v, want ErrInvalidKeyFormat", err)
			}
		})
	}
}

func TestFingerprint_Stable(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	fp1 := Fingerprint(kp.PublicKeyB64)
	fp2 := Fingerprint(kp.PublicKeyB64)
	if fp1 != fp2 {
		t.Error("fingerprint not stable for identical input")
	}
	if len(fp1) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(fp1))
	}
}
