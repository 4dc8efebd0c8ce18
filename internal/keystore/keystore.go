// Package keystore persists a device's secret material: the device identity
// keypair and the per-conversation room keys. Everything here is local-only;
// nothing behind this interface is ever written to the remote store.
package keystore

import (
	"context"

	"vibe_chat/internal/model"
)

type Store interface {
	// GetDeviceIdentity returns the stored identity, or nil if none exists.
	GetDeviceIdentity(ctx context.Context) (*model.DeviceIdentity, error)
	PutDeviceIdentity(ctx context.Context, id *model.DeviceIdentity) error

	// GetRoomKey returns the exported room key for a party, or "" if absent.
	GetRoomKey(ctx context.Context, partyID string) (string, error)
	PutRoomKey(ctx context.Context, partyID, exported string) error
}
