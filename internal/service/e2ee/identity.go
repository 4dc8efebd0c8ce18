package e2ee

import (
	"context"
	"fmt"
	"time"

	"vibe_chat/internal/cryptographic/dh"
	"vibe_chat/internal/model"

	"github.com/google/uuid"
)

// EnsureDeviceIdentity loads the locally persisted device identity, or
// establishes one: a fresh P-256 keypair is generated and its public half
// published to the directory. A device whose local storage was wiped keeps
// its directory id but rotates to the new public key, so it always ends up
// with a usable keypair.
//
// Any directory error is a setup failure; callers must not proceed to room
// key operations without an identity.
func (s *Session) EnsureDeviceIdentity(ctx context.Context) (*model.DeviceIdentity, error) {
	s.mu.Lock()
	if s.identity != nil {
		id := s.identity
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	stored, err := s.keys.GetDeviceIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device identity: %w", err)
	}
	if stored != nil {
		s.mu.Lock()
		s.identity = stored
		s.mu.Unlock()
		return stored, nil
	}

	existing, err := s.store.GetDevice(ctx, s.userID, model.DefaultDeviceLabel)
	if err != nil {
		return nil, fmt.Errorf("directory lookup: %w", err)
	}

	priv, err := dh.NewP256KeyPair()
	if err != nil {
		return nil, err
	}
	pubSPKI, err := dh.ExportPublicKey(priv.PublicKey())
	if err != nil {
		return nil, err
	}
	privPKCS8, err := dh.ExportPrivateKey(priv)
	if err != nil {
		return nil, err
	}

	deviceID := uuid.NewString()
	if existing != nil {
		// The directory already knows this device; keep its id and rotate
		// the published key.
		deviceID = existing.ID
	}

	rec := &model.DeviceRecord{
		ID:            deviceID,
		UserID:        s.userID,
		DeviceLabel:   model.DefaultDeviceLabel,
		PublicKeySPKI: pubSPKI,
		UpdatedAt:     time.Now().UTC(),
	}
	if err := s.store.PutDevice(ctx, rec); err != nil {
		return nil, fmt.Errorf("publish device key: %w", err)
	}

	identity := &model.DeviceIdentity{
		DeviceID:        deviceID,
		PublicKeySPKI:   pubSPKI,
		PrivateKeyPKCS8: privPKCS8,
	}
	if err := s.keys.PutDeviceIdentity(ctx, identity); err != nil {
		return nil, fmt.Errorf("persist device identity: %w", err)
	}

	s.mu.Lock()
	s.identity = identity
	s.mu.Unlock()
	return identity, nil
}
