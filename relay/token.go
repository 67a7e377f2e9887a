package relay

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/walletmail/client-go/internal/crypto"
)

// SessionTTL is how long an issued session token stays valid.
const SessionTTL = time.Hour

// Token verification errors.
var (
	ErrTokenMalformed = errors.New("malformed session token")
	ErrTokenInvalid   = errors.New("invalid session token")
	ErrTokenExpired   = errors.New("session token expired")
)

// TokenIssuer mints and verifies HMAC session tokens. A token binds a
// wallet address to an expiry; expiry is checked on every use, not only
// at issue time.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewTokenIssuer creates a token issuer with the given HMAC secret.
func NewTokenIssuer(secret []byte) (*TokenIssuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("token secret must be at least 32 bytes, got %d", len(secret))
	}
	return &TokenIssuer{secret: secret, now: time.Now}, nil
}

// Issue mints a token for wallet, valid for SessionTTL.
func (t *TokenIssuer) Issue(wallet string) (token string, expiresAt time.Time) {
	expiresAt = t.now().Add(SessionTTL).UTC()
	payload := wallet + "." + strconv.FormatInt(expiresAt.Unix(), 10)
	mac := t.sign(payload)
	return crypto.ToBase64URL([]byte(payload)) + "." + mac, expiresAt
}

// Verify checks a token and returns the wallet it was issued to.
func (t *TokenIssuer) Verify(token string) (wallet string, err error) {
	dot := strings.LastIndexByte(token, '.')
	if dot < 0 {
		return "", ErrTokenMalformed
	}
	payloadB64, mac := token[:dot], token[dot+1:]

	payloadBytes, err := crypto.FromBase64URL(payloadB64)
	if err != nil {
		return "", ErrTokenMalformed
	}
	payload := string(payloadBytes)

	if !hmac.Equal([]byte(mac), []byte(t.sign(payload))) {
		return "", ErrTokenInvalid
	}

	sep := strings.LastIndexByte(payload, '.')
	if sep < 0 {
		return "", ErrTokenMalformed
	}
	wallet = payload[:sep]
	expUnix, err := strconv.ParseInt(payload[sep+1:], 10, 64)
	if err != nil {
		return "", ErrTokenMalformed
	}
	if t.now().After(time.Unix(expUnix, 0)) {
		return "", ErrTokenExpired
	}
	return wallet, nil
}

func (t *TokenIssuer) sign(payload string) string {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(payload))
	return crypto.ToBase64URL(mac.Sum(nil))
}
