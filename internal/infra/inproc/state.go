package inproc

import (
	"context"
	"sync"
	"time"

	"streamer-live-bot/internal/domain"
	"streamer-live-bot/internal/domain/ports/repository"
)

var _ repository.StateRepository = (*StateStore)(nil)

type stateEntry struct {
	state   repository.ConversationState
	expires time.Time
}

// StateStore keeps conversation state in memory with a fixed TTL.
type StateStore struct {
	mu  sync.Mutex
	m   map[int64]stateEntry
	ttl time.Duration
	now func() time.Time
}

func NewStateStore(ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StateStore{m: map[int64]stateEntry{}, ttl: ttl, now: time.Now}
}

func (s *StateStore) SetState(_ context.Context, tgID int64, state *repository.ConversationState) error {
	if state == nil {
		return domain.ErrInvalidArgument
	}
	cp := *state
	if state.Data != nil {
		cp.Data = make(map[string]string, len(state.Data))
		for k, v := range state.Data {
			cp.Data[k] = v
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[tgID] = stateEntry{state: cp, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *StateStore) GetState(_ context.Context, tgID int64) (*repository.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[tgID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if s.now().After(e.expires) {
		delete(s.m, tgID)
		return nil, domain.ErrNotFound
	}
	st := e.state
	return &st, nil
}

func (s *StateStore) ClearState(_ context.Context, tgID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, tgID)
	return nil
}
