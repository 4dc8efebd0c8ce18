package server

import (
	"context"
	"encoding/json"
	"fmt"

	"vibe_chat/internal/model"
	redisSvc "vibe_chat/internal/service/redis"
)

// maxCachedMessages bounds the per-party hot page kept in Redis.
const maxCachedMessages = 200

// MessageCache keeps the recent message page per party in Redis so page
// loads skip Mongo for active conversations.
type MessageCache struct {
	redisService *redisSvc.RedisService
}

func NewMessageCache(redisService *redisSvc.RedisService) *MessageCache {
	return &MessageCache{
		redisService: redisService,
	}
}

func cacheKey(partyID string) string {
	return fmt.Sprintf("party_msgs:%s", partyID)
}

func (c *MessageCache) Push(ctx context.Context, msg *model.WireMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := cacheKey(msg.PartyID)
	if err := c.redisService.RPush(ctx, key, data); err != nil {
		return err
	}
	return c.redisService.LTrim(ctx, key, -maxCachedMessages, -1)
}

// Recent returns up to limit cached messages, newest first. An empty result
// means the caller should fall back to the durable store.
func (c *MessageCache) Recent(ctx context.Context, partyID string, limit int) ([]*model.WireMessage, error) {
	vals, err := c.redisService.LRange(ctx, cacheKey(partyID), int64(-limit), -1)
	if err != nil {
		return nil, err
	}

	var msgs []*model.WireMessage
	for i := len(vals) - 1; i >= 0; i-- {
		var m model.WireMessage
		if err := json.Unmarshal([]byte(vals[i]), &m); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	return msgs, nil
}
