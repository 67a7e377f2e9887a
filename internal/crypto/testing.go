package crypto

import (
	"crypto/rand"
	"io"
)

// randReader is the random source used for key and nonce generation.
// It defaults to crypto/rand but can be overridden for testing.
var randReader io.Reader = rand.Reader

// SetRandReaderForTesting sets the random reader used by key generation.
// This is intended for testing only. Returns a function to restore the
// original reader. Since this package is internal, external code cannot
// reach it.
func SetRandReaderForTesting(r io.Reader) func() {
	original := randReader
	randReader = r
	return func() { randReader = original }
}
