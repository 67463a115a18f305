package adapter

import (
	"context"

	"streamer-live-bot/internal/domain/model"
)

// WorkflowGateway talks to the remote workflow-automation API.
// Failures are returned as *domain.GatewayError.
type WorkflowGateway interface {
	// Create submits spec and starts it. The returned id is only valid when
	// both steps succeeded; a workflow that was created but failed to start
	// is deleted before Create returns.
	Create(ctx context.Context, spec model.WorkflowSpec) (string, error)
	List(ctx context.Context) ([]model.WorkflowSummary, error)
	Delete(ctx context.Context, workflowID string) error
}
