// Package cryptox holds the small set of primitives the client needs:
// argon2id key derivation, verifiers for offline credential checks and
// AES-GCM sealing of values kept at rest.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/argon2"
)

// KeySize is the length of keys produced by DeriveKey (AES-256).
const KeySize = 32

// ErrCiphertextTooShort is returned by Open when the input cannot contain a nonce.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// DeriveKey stretches secret with salt using argon2id.
func DeriveKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, KeySize)
}

// MakeVerifier returns a one-way fingerprint of a derived key. Verifiers are
// what gets stored, never the key itself.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// VerifySecret derives a key for candidate and compares its verifier with
// the stored one in constant time.
func VerifySecret(candidate, salt, verifier []byte) bool {
	if len(verifier) == 0 {
		return false
	}
	got := MakeVerifier(DeriveKey(candidate, salt))
	return subtle.ConstantTimeCompare(got, verifier) == 1
}

// Seal encrypts plaintext with AES-GCM under key. The random nonce is
// prepended to the returned ciphertext.
func Seal(plaintext, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func Open(sealed, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	ns := aesgcm.NonceSize()
	if len(sealed) < ns {
		return nil, ErrCiphertextTooShort
	}

	return aesgcm.Open(nil, sealed[:ns], sealed[ns:], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
