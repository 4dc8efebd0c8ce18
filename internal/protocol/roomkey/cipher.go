package roomkey

import (
	"encoding/base64"
	"fmt"

	"vibe_chat/internal/cryptographic/encryption"
)

// EncryptMessage encrypts chat plaintext under the room key with a fresh
// random 12-byte nonce. Both outputs are base64 for the wire.
func EncryptMessage(plaintext string, rk RoomKey) (ciphertext, nonce string, err error) {
	ct, n, err := encryption.AEADEncrypt(rk, []byte(plaintext))
	if err != nil {
		return "", "", fmt.Errorf("encrypt message: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ct), base64.StdEncoding.EncodeToString(n), nil
}

// DecryptMessage reverses EncryptMessage. It never returns an error: any
// failure (bad base64, wrong nonce length, wrong key, tampered ciphertext)
// reports ok=false so the caller can render a placeholder instead of
// crashing.
func DecryptMessage(ciphertext, nonce string, rk RoomKey) (plaintext string, ok bool) {
	ct, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", false
	}
	n, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		return "", false
	}
	if len(n) != encryption.NonceSize {
		return "", false
	}
	plain, err := encryption.AEADDecrypt(rk, ct, n)
	if err != nil {
		return "", false
	}
	return string(plain), true
}
