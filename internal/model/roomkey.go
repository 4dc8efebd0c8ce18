package model

import "time"

type (
	// SealedRoomKeyEntry is a per-recipient wrapped copy of a room key at the
	// remote boundary. At most one entry exists per (party_id, user_id); the
	// remote store enforces this with insert-if-absent semantics.
	SealedRoomKeyEntry struct {
		PartyID             string    `json:"party_id" bson:"party_id"`
		UserID              string    `json:"user_id" bson:"user_id"`
		EncryptedRoomKey    string    `json:"encrypted_room_key" bson:"encrypted_room_key"`
		SenderDeviceID      string    `json:"sender_device_id" bson:"sender_device_id"`
		SenderPublicKeySPKI string    `json:"sender_public_key_spki" bson:"sender_public_key_spki"`
		CreatedAt           time.Time `json:"created_at" bson:"created_at"`
	}
)
