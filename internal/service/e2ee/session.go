// Package e2ee owns a device's encryption state for the lifetime of a chat
// session: the device identity and the room keys it has obtained. The remote
// store behind RemoteStore is an untrusted relay; only public keys and
// sealed material ever go through it.
package e2ee

import (
	"sync"

	"vibe_chat/internal/keystore"
	"vibe_chat/internal/model"
	"vibe_chat/internal/protocol/roomkey"
	"vibe_chat/internal/remote"
)

// RemoteStore is the slice of the relay surface the key protocols need.
type RemoteStore interface {
	remote.Directory
	remote.SealedKeys
	remote.Members
}

type Session struct {
	userID string
	keys   keystore.Store
	store  RemoteStore

	mu       sync.Mutex
	identity *model.DeviceIdentity
	roomKeys map[string]roomkey.RoomKey
}

func NewSession(userID string, keys keystore.Store, store RemoteStore) *Session {
	return &Session{
		userID:   userID,
		keys:     keys,
		store:    store,
		roomKeys: make(map[string]roomkey.RoomKey),
	}
}

// UserID returns the user this session belongs to.
func (s *Session) UserID() string {
	return s.userID
}

// Identity returns the device identity, or nil before EnsureDeviceIdentity
// has succeeded.
func (s *Session) Identity() *model.DeviceIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}
