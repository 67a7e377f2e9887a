package relay

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}
	return issuer
}

func TestTokenIssuer_RejectsShortSecret(t *testing.T) {
	if _, err := NewTokenIssuer([]byte("short")); err == nil {
		t.Error("short secret accepted")
	}
}

func TestToken_RoundTrip(t *testing.T) {
	issuer := testIssuer(t)

	token, expiresAt := issuer.Issue("wallet-abc")
	if time.Until(expiresAt) > SessionTTL || time.Until(expiresAt) < SessionTTL-time.Minute {
		t.Errorf("expiresAt = %v, want about %v out", expiresAt, SessionTTL)
	}

	wallet, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if wallet != "wallet-abc" {
		t.Errorf("wallet = %q, want %q", wallet, "wallet-abc")
	}
}

func TestToken_WalletWithDots(t *testing.T) {
	issuer := testIssuer(t)

	token, _ := issuer.Issue("wallet.with.dots")
	wallet, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if wallet != "wallet.with.dots" {
		t.Errorf("wallet = %q", wallet)
	}
}

func TestToken_Expired(t *testing.T) {
	issuer := testIssuer(t)

	issuer.now = func() time.Time { return time.Now().Add(-2 * SessionTTL) }
	token, _ := issuer.Issue("wallet-abc")
	issuer.now = time.Now

	_, err := issuer.Verify(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Verify(expired) error = %v, want ErrTokenExpired", err)
	}
}

func TestToken_Tampered(t *testing.T) {
	issuer := testIssuer(t)
	token, _ := issuer.Issue("wallet-abc")

	// Flip a character in the MAC.
	dot := strings.LastIndexByte(token, '.')
	mac := []byte(token[dot+1:])
	if mac[0] == 'A' {
		mac[0] = 'B'
	} else {
		mac[0] = 'A'
	}
	_, err := issuer.Verify(token[:dot+1] + string(mac))
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify(tampered) error = %v, want ErrTokenInvalid", err)
	}
}

func TestToken_ForeignSecret(t *testing.T) {
	issuer := testIssuer(t)
	other, err := NewTokenIssuer([]byte("ffffffffffffffffffffffffffffffff"))
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}

	token, _ := other.Issue("wallet-abc")
	if _, err := issuer.Verify(token); err == nil {
		t.Error("token from another secret accepted")
	}
}

func TestToken_Malformed(t *testing.T) {
	issuer := testIssuer(t)
	for _, token := range []string{"", "nodots", "!!bad-base64!!.mac"} {
		if _, err := issuer.Verify(token); err == nil {
			t.Errorf("Verify(%q) succeeded, want error", token)
		}
	}
}
