// Package keystore implements the durable per-device key cache, plus the
// legacy session-scoped variant that exists only to be migrated away from.
// All reads and writes go through the key lifecycle manager; nothing else
// touches cached key material.
package keystore

import "errors"

var (
	// ErrPartialKeys is returned when a caller tries to persist a cache
	// entry missing either half of the keypair. A cache holding a public
	// key without its private key (or the reverse) is forbidden at every
	// lifecycle transition.
	ErrPartialKeys = errors.New("keystore: refusing to store partial keypair")
)

// CachedKeys is one wallet's locally cached keypair, both halves base64.
type CachedKeys struct {
	PrivateKeyB64 string `json:"privateKey"`
	PublicKeyB64  string `json:"publicKey"`
}

// Complete reports whether both halves are present.
func (k *CachedKeys) Complete() bool {
	return k != nil && k.PrivateKeyB64 != "" && k.PublicKeyB64 != ""
}

// Store is durable per-device key storage keyed by wallet address.
// Load returns (nil, nil) when no entry exists. Save rejects partial entries.
type Store interface {
	Load(address string) (*CachedKeys, error)
	Save(address string, keys *CachedKeys) error
	Delete(address string) error

	// Legacy entries are the session-scoped cache written by older versions.
	// They are read and deleted during migration, never written by current
	// code outside of tests.
	LoadLegacy(address string) (*CachedKeys, error)
	SaveLegacy(address string, keys *CachedKeys) error
	DeleteLegacy(address string) error
}
