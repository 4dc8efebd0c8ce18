// Package remote defines the boundary to the untrusted relay. The relay
// stores only public keys, sealed room-key copies and ciphertext; it is
// never trusted with plaintext or raw key material.
package remote

import (
	"context"
	"errors"

	"vibe_chat/internal/model"
)

// ErrRateLimited reports that the relay rejected a send for being too
// frequent. The caller may retry after a pause; the message is not lost.
var ErrRateLimited = errors.New("remote: rate limited")

type (
	// Directory is the published-device-key lookup. Lookups that find
	// nothing return (nil, nil).
	Directory interface {
		GetDevice(ctx context.Context, userID, label string) (*model.DeviceRecord, error)
		// PutDevice inserts a record, or updates the public key and
		// updated_at of the existing record for (user_id, device_label).
		// An existing record keeps its id.
		PutDevice(ctx context.Context, rec *model.DeviceRecord) error
	}

	// SealedKeys holds per-recipient wrapped room keys. EnsureSealedKey is
	// the race-arbitration primitive: it inserts only if no entry exists
	// yet for (party_id, user_id), and is a silent no-op otherwise.
	SealedKeys interface {
		GetSealedKey(ctx context.Context, partyID, userID string) (*model.SealedRoomKeyEntry, error)
		EnsureSealedKey(ctx context.Context, entry *model.SealedRoomKeyEntry) error
	}

	// Members lists a conversation's membership.
	Members interface {
		ListMembers(ctx context.Context, partyID, excludeUserID string) ([]string, error)
	}

	// Messages is the ciphertext transport: send, a newest-first page, and
	// a live push feed. Subscribe's stop function releases the feed.
	Messages interface {
		SendMessage(ctx context.Context, msg *model.WireMessage) error
		RecentMessages(ctx context.Context, partyID string, limit int) ([]*model.WireMessage, error)
		Subscribe(ctx context.Context, partyID string) (<-chan *model.WireMessage, func(), error)
	}

	// Store is the full relay surface a chat session needs.
	Store interface {
		Directory
		SealedKeys
		Members
		Messages
	}
)
