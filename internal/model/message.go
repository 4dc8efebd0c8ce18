package model

import "time"

// E2EVersion is the current wire-format version for encrypted messages.
const E2EVersion = 1

type (
	// WireMessage is what crosses the relay: ciphertext and nonce are base64,
	// the nonce decodes to exactly 12 bytes. The relay never sees plaintext.
	WireMessage struct {
		ID             string    `json:"id" bson:"id"`
		PartyID        string    `json:"party_id" bson:"party_id"`
		UserID         string    `json:"user_id" bson:"user_id"`
		Ciphertext     string    `json:"ciphertext" bson:"ciphertext"`
		Nonce          string    `json:"nonce" bson:"nonce"`
		E2EVersion     int       `json:"e2e_version" bson:"e2e_version"`
		SenderDeviceID string    `json:"sender_device_id" bson:"sender_device_id"`
		CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	}

	// DecryptedMessage is the device-local result of decrypting a WireMessage.
	// DecryptFailed marks messages that must render as "cannot decrypt".
	DecryptedMessage struct {
		ID            string
		PartyID       string
		UserID        string
		Plaintext     string
		CreatedAt     time.Time
		DecryptFailed bool
	}

	// PartyMember is one row of a conversation's membership listing.
	PartyMember struct {
		PartyID string `json:"party_id" bson:"party_id"`
		UserID  string `json:"user_id" bson:"user_id"`
	}
)
