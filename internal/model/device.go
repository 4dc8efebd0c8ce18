package model

import "time"

type (
	// DeviceIdentity is the device-local view of a keypair. The private key
	// never leaves local storage.
	DeviceIdentity struct {
		DeviceID        string `json:"device_id"`
		PublicKeySPKI   string `json:"public_key_spki"`
		PrivateKeyPKCS8 string `json:"private_key_pkcs8"`
	}

	// DeviceRecord is the server-visible projection of a DeviceIdentity.
	// One record per (user_id, device_label) is authoritative.
	DeviceRecord struct {
		ID            string    `json:"id" bson:"id"`
		UserID        string    `json:"user_id" bson:"user_id"`
		DeviceLabel   string    `json:"device_label" bson:"device_label"`
		PublicKeySPKI string    `json:"public_key_spki" bson:"public_key_spki"`
		UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
	}
)

// DefaultDeviceLabel is the only label currently in use.
const DefaultDeviceLabel = "default"
