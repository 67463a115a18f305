package repository

import (
	"context"

	"streamer-live-bot/internal/domain/model"
)

// SessionRepository stores users, their watchlists and the remote workflows
// that serve each watch entry. Storage failures are *domain.StorageError;
// missing rows are domain.ErrNotFound.
type SessionRepository interface {
	GetOrCreateUser(ctx context.Context, tx Tx, tgID, chatID int64) (*model.UserSession, error)
	FindUser(ctx context.Context, tx Tx, tgID int64) (*model.UserSession, error)
	SetNotificationsEnabled(ctx context.Context, tx Tx, tgID int64, enabled bool) error
	CountUsers(ctx context.Context, tx Tx) (int, error)

	// ListWatchedStreamers returns handles in the order they were added.
	ListWatchedStreamers(ctx context.Context, tx Tx, tgID int64) ([]string, error)
	// AddStreamer returns false when the pair already exists.
	AddStreamer(ctx context.Context, tx Tx, tgID int64, handle string) (bool, error)
	// RemoveStreamer also drops the tracked workflow of the pair.
	RemoveStreamer(ctx context.Context, tx Tx, tgID int64, handle string) (bool, error)
	RemoveAllStreamers(ctx context.Context, tx Tx, tgID int64) (int, error)
	ListWatchPage(ctx context.Context, tx Tx, tgID int64, offset, limit int) ([]*model.WatchItem, int, error)

	RecordWorkflow(ctx context.Context, tx Tx, tgID int64, handle, workflowID string) error
	GetWorkflowID(ctx context.Context, tx Tx, tgID int64, handle string) (string, bool, error)
	DeleteWorkflowRecord(ctx context.Context, tx Tx, tgID int64, handle string) error
	FindHandleByWorkflowID(ctx context.Context, tx Tx, tgID int64, workflowID string) (string, error)
	ListTrackedWorkflows(ctx context.Context, tx Tx, tgID int64) ([]*model.TrackedWorkflow, error)
}
