package store

import (
	"context"
	"sync"
)

// MemoryStore keeps all state in memory behind a single mutex. It implements
// the same contract as SQLiteStore and exists for tests and ephemeral runs.
type MemoryStore struct {
	mu            sync.Mutex
	channels      []Channel
	channelIndex  map[string]bool
	requests      []Request
	requestIndex  map[string]int
	notifications []SentNotification
	confirmations map[string]Confirmation
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		channelIndex:  make(map[string]bool),
		requestIndex:  make(map[string]int),
		confirmations: make(map[string]Confirmation),
	}
}

func (s *MemoryStore) AddChannel(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channelIndex[chatID] {
		return ErrChannelExists
	}
	s.channelIndex[chatID] = true
	s.channels = append(s.channels, Channel{ChatID: chatID})
	return nil
}

func (s *MemoryStore) ListChannels(ctx context.Context) ([]Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Channel, len(s.channels))
	copy(out, s.channels)
	return out, nil
}

func (s *MemoryStore) AddRequest(ctx context.Context, id, name, mac string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestIndex[id] = len(s.requests)
	s.requests = append(s.requests, Request{ID: id, Name: name, MAC: mac})
	return nil
}

func (s *MemoryStore) ListUndispatched(ctx context.Context) ([]Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if !r.Dispatched {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) ClaimDispatch(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.requestIndex[id]
	if !ok || s.requests[idx].Dispatched {
		return false, nil
	}
	s.requests[idx].Dispatched = true
	return true, nil
}

func (s *MemoryStore) RecordNotification(ctx context.Context, requestID, chatID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, SentNotification{
		RequestID: requestID,
		ChatID:    chatID,
		MessageID: messageID,
	})
	return nil
}

func (s *MemoryStore) ListNotifications(ctx context.Context, requestID string) ([]SentNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SentNotification
	for _, n := range s.notifications {
		if n.RequestID == requestID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetRequest(ctx context.Context, id string) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.requestIndex[id]
	if !ok {
		return nil, ErrNotFound
	}
	r := s.requests[idx]
	return &r, nil
}

func (s *MemoryStore) RecordConfirmation(ctx context.Context, requestID string, durationMinutes int, approver string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.confirmations[requestID]; exists {
		return ErrAlreadyConfirmed
	}
	s.confirmations[requestID] = Confirmation{
		RequestID:       requestID,
		DurationMinutes: durationMinutes,
		Approver:        approver,
	}
	return nil
}

func (s *MemoryStore) GetConfirmation(ctx context.Context, requestID string) (*Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.confirmations[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
