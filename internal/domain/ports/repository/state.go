package repository

import (
	"context"
	"time"
)

const (
	StepAwaitingHandle   = "awaiting_handle"
	StepConfirmDeleteAll = "confirm_delete_all"
)

// ConversationState holds the user's progress in any multi-step conversation.
type ConversationState struct {
	Step string            `json:"step"`
	Data map[string]string `json:"data,omitempty"`
}

// StateRepository is the port for managing any user's conversational state.
// GetState returns domain.ErrNotFound when nothing is pending.
type StateRepository interface {
	SetState(ctx context.Context, tgID int64, state *ConversationState) error
	GetState(ctx context.Context, tgID int64) (*ConversationState, error)
	ClearState(ctx context.Context, tgID int64) error
}

// Locker serializes mutations on a key across workers (and processes when
// backed by Redis). Lock returns domain.ErrLockBusy if the key stays held.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
