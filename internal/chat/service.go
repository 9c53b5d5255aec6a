package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"moodmate/internal/models"
)

// ValidationError marks client-caused input problems (HTTP 400).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// UpstreamError wraps a generative-text failure. The client sees only the
// generic message; the wrapped cause stays server-side.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return "Failed to process chat message" }
func (e *UpstreamError) Unwrap() error { return e.Err }

// Generator produces a bot reply for a fully rendered prompt.
type Generator interface {
	Reply(ctx context.Context, prompt string) (string, error)
}

var personaLines = []string{
	"You are a helpful academic stress management chatbot. Follow these rules:",
	"- Respond conversationally",
	"- Offer practical advice",
	"- Be empathetic and supportive",
	"- Keep responses under 500 characters",
	"Current conversation:",
}

// Service orchestrates chat turns: it appends the user message, renders the
// windowed prompt, calls the generator, and appends the reply.
type Service struct {
	store         Store
	gen           Generator
	historyWindow int
	replyTimeout  time.Duration

	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex

	seenMu   sync.Mutex
	lastSeen map[int64]int64
}

// NewService builds a chat service over the given transcript store and
// generator. historyWindow caps how many prior messages enter the prompt.
func NewService(store Store, gen Generator, historyWindow int, replyTimeout time.Duration) *Service {
	if historyWindow <= 0 {
		historyWindow = 30
	}
	if replyTimeout <= 0 {
		replyTimeout = 90 * time.Second
	}
	return &Service{
		store:         store,
		gen:           gen,
		historyWindow: historyWindow,
		replyTimeout:  replyTimeout,
		userLocks:     make(map[int64]*sync.Mutex),
		lastSeen:      make(map[int64]int64),
	}
}

// History returns the user's transcript in insertion order, empty for a fresh
// user.
func (s *Service) History(ctx context.Context, userID int64) ([]models.ChatMessage, error) {
	history, err := s.store.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []models.ChatMessage{}
	}
	s.touch(userID)
	return history, nil
}

// SendMessage runs one chat turn and returns the bot reply. Turns for the
// same user are serialized so concurrent sends cannot interleave appends.
func (s *Service) SendMessage(ctx context.Context, userID int64, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Msg: "Message text is required"}
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	userMsg := models.ChatMessage{
		Sender:    models.SenderUser,
		Text:      text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.store.Append(ctx, userID, userMsg); err != nil {
		return nil, err
	}

	history, err := s.store.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	prompt := s.buildPrompt(history)

	genCtx, cancel := context.WithTimeout(ctx, s.replyTimeout)
	defer cancel()
	reply, err := s.gen.Reply(genCtx, prompt)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}

	botMsg := models.ChatMessage{
		Sender:    models.SenderBot,
		Text:      reply,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.store.Append(ctx, userID, botMsg); err != nil {
		return nil, err
	}
	s.touch(userID)
	return &botMsg, nil
}

// Purge drops the transcript, last-seen entry, and lock entry for the user
// (logout hook). The lock entry is recreated on the user's next send.
func (s *Service) Purge(ctx context.Context, userID int64) error {
	if err := s.store.Clear(ctx, userID); err != nil {
		return err
	}
	s.seenMu.Lock()
	delete(s.lastSeen, userID)
	s.seenMu.Unlock()
	s.mu.Lock()
	delete(s.userLocks, userID)
	s.mu.Unlock()
	return nil
}

// LastSeen reports the unix time of the user's latest chat activity.
func (s *Service) LastSeen(userID int64) (int64, bool) {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	ts, ok := s.lastSeen[userID]
	return ts, ok
}

// The transcript on disk stays complete; only the prompt is windowed.
func (s *Service) buildPrompt(history []models.ChatMessage) string {
	if len(history) > s.historyWindow {
		history = history[len(history)-s.historyWindow:]
	}
	lines := make([]string, 0, len(personaLines)+len(history))
	lines = append(lines, personaLines...)
	for _, msg := range history {
		lines = append(lines, string(msg.Sender)+": "+msg.Text)
	}
	return strings.Join(lines, "\n")
}

func (s *Service) userLock(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

func (s *Service) touch(userID int64) {
	s.seenMu.Lock()
	s.lastSeen[userID] = time.Now().Unix()
	s.seenMu.Unlock()
}
