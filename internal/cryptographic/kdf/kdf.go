package kdf

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDF fills buffer with key material derived from secret via HKDF-SHA256.
func HKDF(secret, salt, info, buffer []byte) (int, error) {
	h := hkdf.New(sha256.New, secret, salt, info)
	return io.ReadFull(h, buffer)
}

// WrapKey derives a 32-byte key-encryption key from an ECDH shared secret.
// Info binds the derivation to room-key wrapping so the same shared secret
// cannot be repurposed elsewhere.
func WrapKey(sharedSecret []byte) ([]byte, error) {
	kek := make([]byte, 32)
	if _, err := HKDF(sharedSecret, nil, []byte("vibe-room-key-wrap"), kek); err != nil {
		return nil, err
	}
	return kek, nil
}
