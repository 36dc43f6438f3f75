package rag

import (
	"context"
	"sort"
	"sync"
	"time"

	"saascribe-platform/models"
)

// MemoryHistory is an in-process HistoryStore.
type MemoryHistory struct {
	mu       sync.Mutex
	messages map[string][]models.ChatMessage
	now      func() time.Time
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		messages: make(map[string][]models.ChatMessage),
		now:      time.Now,
	}
}

func (h *MemoryHistory) LoadHistory(_ context.Context, ownerID, documentID string) ([]models.ChatMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := h.messages[historyKey(ownerID, documentID)]
	out := make([]models.ChatMessage, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (h *MemoryHistory) AppendMessage(_ context.Context, msg *models.ChatMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = h.now()
	}
	key := historyKey(msg.OwnerID, msg.DocumentID)
	h.messages[key] = append(h.messages[key], *msg)
	return nil
}

func historyKey(ownerID, documentID string) string {
	return ownerID + "/" + documentID
}

// toTurns keeps the newest window messages (all when window <= 0).
func toTurns(history []models.ChatMessage, window int) []Turn {
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	turns := make([]Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, Turn{Role: m.Role, Text: m.Message})
	}
	return turns
}
