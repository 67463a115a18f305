package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type WorkflowStatus string

const (
	WorkflowActive   WorkflowStatus = "active"
	WorkflowInactive WorkflowStatus = "inactive"
)

// WatchEntry records that a user wants live notifications for a handle.
// At most one entry exists per (TelegramID, Handle).
type WatchEntry struct {
	ID         string
	TelegramID int64
	Handle     string
	CreatedAt  time.Time
}

func NewWatchEntry(tgID int64, handle string) *WatchEntry {
	return &WatchEntry{
		ID:         ulid.Make().String(),
		TelegramID: tgID,
		Handle:     handle,
		CreatedAt:  time.Now(),
	}
}

// TrackedWorkflow links a watch entry to the remote workflow serving it.
type TrackedWorkflow struct {
	TelegramID int64
	Handle     string
	WorkflowID string
	Status     WorkflowStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// WatchItem is the listing view of a watch entry joined with its workflow.
// RemoteState and LastNotifiedAt are filled from the remote API when it answers.
type WatchItem struct {
	Handle         string
	WorkflowID     string
	Status         WorkflowStatus
	RemoteState    string
	CreatedAt      time.Time
	LastNotifiedAt *time.Time
}

// Live reports whether the workflow is believed to be running.
func (w *WatchItem) Live() bool {
	if w.RemoteState != "" {
		return w.RemoteState == string(WorkflowActive)
	}
	return w.Status == WorkflowActive
}
