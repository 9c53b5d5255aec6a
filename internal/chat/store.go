package chat

import (
	"context"
	"sync"

	"moodmate/internal/models"
)

// Store is a per-user ordered message log. Implementations must preserve
// insertion order and return an empty history for unknown users.
type Store interface {
	History(ctx context.Context, userID int64) ([]models.ChatMessage, error)
	Append(ctx context.Context, userID int64, msg models.ChatMessage) error
	Clear(ctx context.Context, userID int64) error
}

// MemoryStore keeps transcripts in a process-wide map. Contents are lost on
// restart.
type MemoryStore struct {
	mu   sync.RWMutex
	logs map[int64][]models.ChatMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[int64][]models.ChatMessage)}
}

func (m *MemoryStore) History(ctx context.Context, userID int64) ([]models.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	log := m.logs[userID]
	out := make([]models.ChatMessage, len(log))
	copy(out, log)
	return out, nil
}

func (m *MemoryStore) Append(ctx context.Context, userID int64, msg models.ChatMessage) error {
	m.mu.Lock()
	m.logs[userID] = append(m.logs[userID], msg)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, userID int64) error {
	m.mu.Lock()
	delete(m.logs, userID)
	m.mu.Unlock()
	return nil
}
