package keystore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"vibe_chat/internal/model"
)

const (
	deviceFile   = "device.json"
	roomKeysFile = "room_keys.json"
)

// FileStore keeps secret material as JSON files in a private directory,
// for deployments without a local Redis.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) GetDeviceIdentity(ctx context.Context) (*model.DeviceIdentity, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, deviceFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var id model.DeviceIdentity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("decode device identity: %w", err)
	}
	return &id, nil
}

func (s *FileStore) PutDeviceIdentity(ctx context.Context, id *model.DeviceIdentity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, deviceFile), data, 0600)
}

func (s *FileStore) GetRoomKey(ctx context.Context, partyID string) (string, error) {
	keys, err := s.readRoomKeys()
	if err != nil {
		return "", err
	}
	return keys[partyID], nil
}

func (s *FileStore) PutRoomKey(ctx context.Context, partyID, exported string) error {
	keys, err := s.readRoomKeys()
	if err != nil {
		return err
	}
	keys[partyID] = exported

	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, roomKeysFile), data, 0600)
}

func (s *FileStore) readRoomKeys() (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, roomKeysFile))
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	keys := make(map[string]string)
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("decode room keys: %w", err)
	}
	return keys, nil
}
