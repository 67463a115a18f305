// Package memory is the ephemeral session store used when no database is
// configured. State is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"streamer-live-bot/internal/domain"
	"streamer-live-bot/internal/domain/model"
	"streamer-live-bot/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
)

var (
	_ repository.SessionRepository  = (*Store)(nil)
	_ repository.TransactionManager = (*Store)(nil)
)

type watchKey struct {
	tgID   int64
	handle string
}

type snapshot struct {
	users     map[int64]model.UserSession
	watches   map[watchKey]model.WatchEntry
	workflows map[watchKey]model.TrackedWorkflow
}

// memTx marks calls made inside WithTx, where the store mutex is already held.
type memTx struct{ s *Store }

type Store struct {
	mu sync.Mutex
	snapshot
	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		snapshot: snapshot{
			users:     map[int64]model.UserSession{},
			watches:   map[watchKey]model.WatchEntry{},
			workflows: map[watchKey]model.TrackedWorkflow{},
		},
		now: time.Now,
	}
}

// WithTx runs fn under the store lock and restores the previous state if fn
// fails. Isolation options are ignored.
func (s *Store) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := s.clone()
	if err := fn(ctx, &memTx{s: s}); err != nil {
		s.snapshot = saved
		return err
	}
	return nil
}

func (s *Store) clone() snapshot {
	c := snapshot{
		users:     make(map[int64]model.UserSession, len(s.users)),
		watches:   make(map[watchKey]model.WatchEntry, len(s.watches)),
		workflows: make(map[watchKey]model.TrackedWorkflow, len(s.workflows)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.watches {
		c.watches[k] = v
	}
	for k, v := range s.workflows {
		c.workflows[k] = v
	}
	return c
}

// lock acquires the mutex unless tx proves the caller already holds it.
func (s *Store) lock(tx repository.Tx) (func(), error) {
	switch v := tx.(type) {
	case nil:
		s.mu.Lock()
		return s.mu.Unlock, nil
	case *memTx:
		if v.s != s {
			return nil, domain.ErrInvalidExecContext
		}
		return func() {}, nil
	default:
		return nil, domain.ErrInvalidExecContext
	}
}

func (s *Store) GetOrCreateUser(ctx context.Context, tx repository.Tx, tgID, chatID int64) (*model.UserSession, error) {
	unlock, err := s.lock(tx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if u, ok := s.users[tgID]; ok {
		if chatID != 0 && u.ChatID != chatID {
			u.ChatID = chatID
			u.UpdatedAt = s.now()
			s.users[tgID] = u
		}
		return &u, nil
	}
	u, err := model.NewUserSession(tgID, chatID)
	if err != nil {
		return nil, err
	}
	s.users[tgID] = *u
	return u, nil
}

func (s *Store) FindUser(ctx context.Context, tx repository.Tx, tgID int64) (*model.UserSession, error) {
	unlock, err := s.lock(tx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	u, ok := s.users[tgID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (s *Store) SetNotificationsEnabled(ctx context.Context, tx repository.Tx, tgID int64, enabled bool) error {
	unlock, err := s.lock(tx)
	if err != nil {
		return err
	}
	defer unlock()
	u, ok := s.users[tgID]
	if !ok {
		return domain.ErrNotFound
	}
	u.NotificationsEnabled = enabled
	u.UpdatedAt = s.now()
	s.users[tgID] = u
	return nil
}

func (s *Store) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	unlock, err := s.lock(tx)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return len(s.users), nil
}

// entriesOf returns the user's watch entries oldest first.
func (s *Store) entriesOf(tgID int64) []model.WatchEntry {
	var out []model.WatchEntry
	for k, w := range s.watches {
		if k.tgID == tgID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) ListWatchedStreamers(ctx context.Context, tx repository.Tx, tgID int64) ([]string, error) {
	unlock, err := s.lock(tx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	entries := s.entriesOf(tgID)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Handle)
	}
	return out, nil
}

func (s *Store) AddStreamer(ctx context.Context, tx repository.Tx, tgID int64, handle string) (bool, error) {
	unlock, err := s.lock(tx)
	if err != nil {
		return false, err
	}
	defer unlock()
	k := watchKey{tgID, handle}
	if _, ok := s.watches[k]; ok {
		return false, nil
	}
	e := model.NewWatchEntry(tgID, handle)
	e.CreatedAt = s.now()
	s.watches[k] = *e
	return true, nil
}

func (s *Store) RemoveStreamer(ctx context.Context, tx repository.Tx, tgID int64, handle string) (bool, error) {
	unlock, err := s.lock(tx)
	if err != nil {
		return false, err
	}
	defer unlock()
	k := watchKey{tgID, handle}
	_, ok := s.watches[k]
	delete(s.watches, k)
	delete(s.workflows, k)
	return ok, nil
}

func (s *Store) RemoveAllStreamers(ctx context.Context, tx repository.Tx, tgID int64) (int, error) {
	unlock, err := s.lock(tx)
	if err != nil {
		return 0, err
	}
	defer unlock()
	n := 0
	for k := range s.watches {
		if k.tgID == tgID {
			delete(s.watches, k)
			delete(s.workflows, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) ListWatchPage(ctx context.Context, tx repository.Tx, tgID int64, offset, limit int) ([]*model.WatchItem, int, error) {
	unlock, err := s.lock(tx)
	if err != nil {
		return nil, 0, err
	}
	defer unlock()
	entries := s.entriesOf(tgID)
	total := len(entries)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []*model.WatchItem{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	items := make([]*model.WatchItem, 0, end-offset)
	for _, e := range entries[offset:end] {
		it := &model.WatchItem{Handle: e.Handle, CreatedAt: e.CreatedAt, Status: model.WorkflowInactive}
		if wf, ok := s.workflows[watchKey{tgID, e.Handle}]; ok {
			it.WorkflowID = wf.WorkflowID
			it.Status = wf.Status
		}
		items = append(items, it)
	}
	return items, total, nil
}

func (s *Store) RecordWorkflow(ctx context.Context, tx repository.Tx, tgID int64, handle, workflowID string) error {
	unlock, err := s.lock(tx)
	if err != nil {
		return err
	}
	defer unlock()
	k := watchKey{tgID, handle}
	if _, ok := s.watches[k]; !ok {
		return domain.ErrNotFound
	}
	for other, wf := range s.workflows {
		if wf.WorkflowID == workflowID && other != k {
			return domain.ErrAlreadyExists
		}
	}
	now := s.now()
	created := now
	if prev, ok := s.workflows[k]; ok {
		created = prev.CreatedAt
	}
	s.workflows[k] = model.TrackedWorkflow{
		TelegramID: tgID,
		Handle:     handle,
		WorkflowID: workflowID,
		Status:     model.WorkflowActive,
		CreatedAt:  created,
		UpdatedAt:  now,
	}
	return nil
}

func (s *Store) GetWorkflowID(ctx context.Context, tx repository.Tx, tgID int64, handle string) (string, bool, error) {
	unlock, err := s.lock(tx)
	if err != nil {
		return "", false, err
	}
	defer unlock()
	wf, ok := s.workflows[watchKey{tgID, handle}]
	return wf.WorkflowID, ok, nil
}

func (s *Store) DeleteWorkflowRecord(ctx context.Context, tx repository.Tx, tgID int64, handle string) error {
	unlock, err := s.lock(tx)
	if err != nil {
		return err
	}
	defer unlock()
	delete(s.workflows, watchKey{tgID, handle})
	return nil
}

func (s *Store) FindHandleByWorkflowID(ctx context.Context, tx repository.Tx, tgID int64, workflowID string) (string, error) {
	unlock, err := s.lock(tx)
	if err != nil {
		return "", err
	}
	defer unlock()
	for k, wf := range s.workflows {
		if k.tgID == tgID && wf.WorkflowID == workflowID {
			return k.handle, nil
		}
	}
	return "", domain.ErrNotFound
}

func (s *Store) ListTrackedWorkflows(ctx context.Context, tx repository.Tx, tgID int64) ([]*model.TrackedWorkflow, error) {
	unlock, err := s.lock(tx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	var out []*model.TrackedWorkflow
	for _, e := range s.entriesOf(tgID) {
		if wf, ok := s.workflows[watchKey{tgID, e.Handle}]; ok {
			wf := wf
			out = append(out, &wf)
		}
	}
	return out, nil
}
