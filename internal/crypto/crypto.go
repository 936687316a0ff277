// Package crypto implements the authenticated-encryption layer of §4.2: a
// symmetric passphrase-derived AES-256-GCM scheme wrapping every stored
// block. It replaces the teacher's asymmetric age-based scheme with the
// symmetric one the repository format calls for; key derivation and
// sealing are independent, testable primitives.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"bt-go/internal/errs"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// SaltSize is the PBKDF2 salt length in bytes, generated once at
	// repository init and stored in cleartext in the manifest.
	SaltSize = 16
	// NonceSize is the AES-GCM nonce length in bytes.
	NonceSize = 12
	// MinIterations is the floor on PBKDF2 iterations §4.2 requires.
	MinIterations = 100_000
)

// NewSalt generates a fresh random repository salt for use at init.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a 32-byte AES-256 key from passphrase and salt via
// PBKDF2-HMAC-SHA-256. iterations must be at least MinIterations; the
// manifest records whatever value was chosen at init so future opens use
// the same one.
func DeriveKey(passphrase string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, KeySize, sha256.New)
}

// Sealer seals and opens the fixed-size records the block store persists:
// flags ‖ nonce ‖ AES-256-GCM(plaintext) ‖ tag.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a Sealer from a derived key (see DeriveKey). key must
// be exactly KeySize bytes.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d: %w", KeySize, len(key), errs.ErrConfig)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("constructing AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("constructing GCM mode: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext under a fresh random nonce and returns
// flags‖nonce‖ciphertext‖tag. flags is authenticated as associated data
// but not encrypted — the compression flag byte rides alongside the
// ciphertext this way (§4.2/§4.3).
func (s *Sealer) Seal(plaintext []byte, flags byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	sealed := s.aead.Seal(nil, nonce, plaintext, []byte{flags})

	record := make([]byte, 0, 1+NonceSize+len(sealed))
	record = append(record, flags)
	record = append(record, nonce...)
	record = append(record, sealed...)
	return record, nil
}

// Open verifies and decrypts a record produced by Seal, returning the
// plaintext and the flags byte that was authenticated alongside it. A
// tag mismatch returns errs.ErrAuthFailure; a record too short to hold
// the flags byte and nonce returns errs.ErrMalformedRecord.
func (s *Sealer) Open(record []byte) (plaintext []byte, flags byte, err error) {
	if len(record) < 1+NonceSize {
		return nil, 0, fmt.Errorf("record too short (%d bytes): %w", len(record), errs.ErrMalformedRecord)
	}

	flags = record[0]
	nonce := record[1 : 1+NonceSize]
	ciphertext := record[1+NonceSize:]

	plaintext, err = s.aead.Open(nil, nonce, ciphertext, []byte{flags})
	if err != nil {
		return nil, 0, fmt.Errorf("opening sealed record: %w", errs.ErrAuthFailure)
	}
	return plaintext, flags, nil
}
