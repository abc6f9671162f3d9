package agent

import (
	"context"
	"sort"
	"sync"
)

// Store owns conversation history. Implementations return
// ErrConversationNotFound for unknown ids from Messages and Delete.
type Store interface {
	// Append adds messages to conversation id, creating it if needed, and
	// returns the conversation's full history afterwards.
	Append(ctx context.Context, id string, msgs ...Message) ([]Message, error)
	Messages(ctx context.Context, id string) ([]Message, error)
	Delete(ctx context.Context, id string) error
	// List returns summaries ordered by most recently updated.
	List(ctx context.Context, limit, offset int) ([]ConversationSummary, error)
}

// MemoryStore is the default Store; history is lost when the process exits.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string][]Message)}
}

func (s *MemoryStore) Append(_ context.Context, id string, msgs ...Message) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[id] = append(s.convs[id], msgs...)
	return cloneMessages(s.convs[id]), nil
}

func (s *MemoryStore) Messages(_ context.Context, id string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.convs[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return cloneMessages(msgs), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[id]; !ok {
		return ErrConversationNotFound
	}
	delete(s.convs, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context, limit, offset int) ([]ConversationSummary, error) {
	s.mu.RLock()
	out := make([]ConversationSummary, 0, len(s.convs))
	for id, msgs := range s.convs {
		sum := ConversationSummary{ID: id, MessageCount: len(msgs)}
		if len(msgs) > 0 {
			sum.CreatedAt = msgs[0].Timestamp
			sum.UpdatedAt = msgs[len(msgs)-1].Timestamp
		}
		out = append(out, sum)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return page(out, limit, offset), nil
}

func page(s []ConversationSummary, limit, offset int) []ConversationSummary {
	if offset >= len(s) {
		return []ConversationSummary{}
	}
	if offset > 0 {
		s = s[offset:]
	}
	if limit > 0 && limit < len(s) {
		s = s[:limit]
	}
	return s
}

func cloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
