package keystore

import (
	"context"
	"encoding/json"
	"fmt"

	"vibe_chat/internal/model"
	redisSvc "vibe_chat/internal/service/redis"
)

const (
	deviceKey     = "e2e:device:current"
	roomKeyPrefix = "e2e:roomkey:"
)

// RedisStore keeps secret material in a device-local Redis instance. Keys
// never expire; clearing them is equivalent to wiping the device.
type RedisStore struct {
	redisService *redisSvc.RedisService
}

func NewRedisStore(redisService *redisSvc.RedisService) *RedisStore {
	return &RedisStore{
		redisService: redisService,
	}
}

func (s *RedisStore) GetDeviceIdentity(ctx context.Context) (*model.DeviceIdentity, error) {
	v, err := s.redisService.Get(ctx, deviceKey)
	if err == redisSvc.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var id model.DeviceIdentity
	if err := json.Unmarshal([]byte(v), &id); err != nil {
		return nil, fmt.Errorf("decode device identity: %w", err)
	}
	return &id, nil
}

func (s *RedisStore) PutDeviceIdentity(ctx context.Context, id *model.DeviceIdentity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return s.redisService.Set(ctx, deviceKey, data, 0)
}

func (s *RedisStore) GetRoomKey(ctx context.Context, partyID string) (string, error) {
	v, err := s.redisService.Get(ctx, roomKeyPrefix+partyID)
	if err == redisSvc.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (s *RedisStore) PutRoomKey(ctx context.Context, partyID, exported string) error {
	return s.redisService.Set(ctx, roomKeyPrefix+partyID, exported, 0)
}
