package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"moodmate/internal/models"
	"moodmate/internal/redis"
)

// RedisStore persists transcripts as redis lists so they survive process
// restarts. Drop-in replacement for MemoryStore behind the Store interface.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func transcriptKey(userID int64) string {
	return fmt.Sprintf("chat:log:%d", userID)
}

func (r *RedisStore) History(ctx context.Context, userID int64) ([]models.ChatMessage, error) {
	raw, err := r.client.LRange(ctx, transcriptKey(userID), 0, -1)
	if err != nil {
		if err == redis.ErrCacheMiss {
			return nil, nil
		}
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	out := make([]models.ChatMessage, 0, len(raw))
	for _, entry := range raw {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, fmt.Errorf("decode transcript entry: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

func (r *RedisStore) Append(ctx context.Context, userID int64, msg models.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode transcript entry: %w", err)
	}
	if err := r.client.RPush(ctx, transcriptKey(userID), data); err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, transcriptKey(userID)); err != nil && err != redis.ErrCacheMiss {
		return fmt.Errorf("clear transcript: %w", err)
	}
	return nil
}
