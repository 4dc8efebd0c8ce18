package roomkey

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// KeySize is the room key length in bytes (AES-256).
const KeySize = 32

// RoomKey is the symmetric key shared by all members of one conversation.
// Raw key bytes never cross the trust boundary to the remote store; only
// sealed copies do.
type RoomKey []byte

// Generate creates a fresh random room key.
func Generate() (RoomKey, error) {
	k := make(RoomKey, KeySize)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		return nil, fmt.Errorf("generate room key: %w", err)
	}
	return k, nil
}

// Export encodes the key for local-only persistence.
func (k RoomKey) Export() string {
	return base64.StdEncoding.EncodeToString(k)
}

// Import decodes a locally persisted room key.
func Import(exported string) (RoomKey, error) {
	raw, err := base64.StdEncoding.DecodeString(exported)
	if err != nil {
		return nil, fmt.Errorf("decode room key: %w", err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("room key must be %d bytes, got %d", KeySize, len(raw))
	}
	return RoomKey(raw), nil
}
