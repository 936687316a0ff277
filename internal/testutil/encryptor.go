package testutil

import (
	"bt-go/internal/crypto"
)

// TestPassphrase is the fixed passphrase every test sealer derives its key
// from, paired with a fixed salt so runs are deterministic.
const TestPassphrase = "test-passphrase-not-for-production"

// testSalt is a fixed 16-byte salt; tests never need NewSalt's randomness.
var testSalt = []byte("0123456789abcdef")

// NewTestSealer builds a deterministic crypto.Sealer for tests, using a
// low iteration count so PBKDF2 doesn't slow the suite down.
func NewTestSealer() *crypto.Sealer {
	key := crypto.DeriveKey(TestPassphrase, testSalt, 1)
	sealer, err := crypto.NewSealer(key)
	if err != nil {
		// KeySize is fixed by DeriveKey; this can only fail on a
		// programming error in this helper itself.
		panic(err)
	}
	return sealer
}
