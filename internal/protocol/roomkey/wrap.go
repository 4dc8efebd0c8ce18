package roomkey

import (
	"encoding/base64"
	"fmt"

	"vibe_chat/internal/cryptographic/dh"
	"vibe_chat/internal/cryptographic/kdf"
	"vibe_chat/internal/cryptographic/keywrap"
)

// Seal wraps a room key for one recipient. The KEK comes from ECDH between
// our private key and their public key, so either side of the pair can
// reverse it and nobody else can. The relay only ever stores the wrapped
// form.
func Seal(rk RoomKey, myPrivPKCS8, theirPubSPKI string) (string, error) {
	kek, err := deriveKEK(myPrivPKCS8, theirPubSPKI)
	if err != nil {
		return "", err
	}
	wrapped, err := keywrap.Wrap(kek, rk)
	if err != nil {
		return "", fmt.Errorf("wrap room key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(wrapped), nil
}

// Unseal reverses Seal given the complementary key pair. A wrap produced
// under a different shared secret fails the integrity check and yields no
// key.
func Unseal(sealed, myPrivPKCS8, theirPubSPKI string) (RoomKey, error) {
	kek, err := deriveKEK(myPrivPKCS8, theirPubSPKI)
	if err != nil {
		return nil, err
	}
	wrapped, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("decode sealed key: %w", err)
	}
	raw, err := keywrap.Unwrap(kek, wrapped)
	if err != nil {
		return nil, fmt.Errorf("unwrap room key: %w", err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("unwrapped key must be %d bytes, got %d", KeySize, len(raw))
	}
	return RoomKey(raw), nil
}

func deriveKEK(privPKCS8, pubSPKI string) ([]byte, error) {
	priv, err := dh.ImportPrivateKey(privPKCS8)
	if err != nil {
		return nil, err
	}
	pub, err := dh.ImportPublicKey(pubSPKI)
	if err != nil {
		return nil, err
	}
	secret, err := dh.SharedSecret(priv, pub)
	if err != nil {
		return nil, err
	}
	return kdf.WrapKey(secret)
}
