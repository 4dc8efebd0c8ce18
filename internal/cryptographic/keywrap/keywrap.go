package keywrap

import (
	"crypto/aes"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
)

// AES Key Wrap (RFC 3394). Deterministic: wrapping the same key material
// under the same KEK always yields the same output, and unwrapping under a
// mismatched KEK fails the integrity check.

var defaultIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

var ErrIntegrity = errors.New("keywrap: integrity check failed")

// Wrap wraps plaintext key material under kek. The plaintext must be a
// multiple of 8 bytes and at least 16 bytes long.
func Wrap(kek, plaintext []byte) ([]byte, error) {
	if len(plaintext) < 16 || len(plaintext)%8 != 0 {
		return nil, fmt.Errorf("keywrap: plaintext length %d not a multiple of 8 (min 16)", len(plaintext))
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}

	n := len(plaintext) / 8
	r := make([]byte, 8+len(plaintext))
	copy(r[:8], defaultIV[:])
	copy(r[8:], plaintext)

	var buf [16]byte
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			copy(buf[:8], r[:8])
			copy(buf[8:], r[i*8:i*8+8])
			block.Encrypt(buf[:], buf[:])

			t := uint64(n*j + i)
			binary.BigEndian.PutUint64(r[:8], binary.BigEndian.Uint64(buf[:8])^t)
			copy(r[i*8:i*8+8], buf[8:])
		}
	}
	return r, nil
}

// Unwrap reverses Wrap, returning ErrIntegrity if ciphertext was not
// produced under kek.
func Unwrap(kek, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 24 || len(ciphertext)%8 != 0 {
		return nil, fmt.Errorf("keywrap: ciphertext length %d invalid", len(ciphertext))
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}

	n := len(ciphertext)/8 - 1
	r := make([]byte, len(ciphertext))
	copy(r, ciphertext)

	var buf [16]byte
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			binary.BigEndian.PutUint64(buf[:8], binary.BigEndian.Uint64(r[:8])^t)
			copy(buf[8:], r[i*8:i*8+8])
			block.Decrypt(buf[:], buf[:])
			copy(r[:8], buf[:8])
			copy(r[i*8:i*8+8], buf[8:])
		}
	}
	if subtle.ConstantTimeCompare(r[:8], defaultIV[:]) != 1 {
		return nil, ErrIntegrity
	}
	return r[8:], nil
}
