package usecase

import (
	"fmt"
	"strings"
	"time"

	"streamer-live-bot/internal/domain/model"
)

const (
	workflowNamePrefix = "Abstract Streamer Notifications - "
	triggerRef         = "1"
	actionRef          = "2"
)

// WatchWorkflowOptions carries the remote block ids and URLs the graph needs.
type WatchWorkflowOptions struct {
	TriggerBlockID int
	ActionBlockID  int
	StreamURLBase  string
	// WebhookURL is the Bot API sendMessage endpoint the action posts to.
	WebhookURL string
	// GatewayTimeout is the per-call timeout of the workflow gateway. The
	// per-user lock is sized from it.
	GatewayTimeout time.Duration
}

// DefaultWatchWorkflowOptions returns the production block ids for botToken.
func DefaultWatchWorkflowOptions(botToken string) WatchWorkflowOptions {
	return WatchWorkflowOptions{
		TriggerBlockID: 103,    // ON_STREAMER_LIVE
		ActionBlockID:  100001, // Telegram SEND_MESSAGE
		StreamURLBase:  "https://portal.abs.xyz/stream/",
		WebhookURL:     "https://api.telegram.org/bot" + botToken + "/sendMessage",
		GatewayTimeout: defaultGatewayTimeout,
	}
}

func WorkflowName(handle string) string { return workflowNamePrefix + handle }

// IsWatchWorkflowName reports whether name was produced by WorkflowName.
func IsWatchWorkflowName(name string) bool { return strings.HasPrefix(name, workflowNamePrefix) }

func StreamURL(base, handle string) string {
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + handle
}

// LiveMessage is the text the action node sends. {{timestamp}} is filled in
// by the automation engine.
func LiveMessage(handle, streamURLBase string) string {
	return fmt.Sprintf("🎥 %s is live on Abstract!\n\n🔗 Watch here: %s\n\n⏰ Time: {{timestamp}}",
		handle, StreamURL(streamURLBase, handle))
}

// BuildWatchWorkflow returns the two-node graph that notifies chatID when
// handle goes live. It does no validation and no I/O.
func BuildWatchWorkflow(handle, chatID string, opts WatchWorkflowOptions) model.WorkflowSpec {
	return model.WorkflowSpec{
		Name:  WorkflowName(handle),
		State: string(model.WorkflowInactive),
		Nodes: []model.WorkflowNode{
			{
				Ref:        triggerRef,
				BlockID:    opts.TriggerBlockID,
				Type:       model.NodeTrigger,
				State:      string(model.WorkflowInactive),
				Parameters: map[string]string{"streamer": handle},
				Position:   model.Position{X: 400, Y: 120},
			},
			{
				Ref:     actionRef,
				BlockID: opts.ActionBlockID,
				Type:    model.NodeAction,
				State:   string(model.WorkflowInactive),
				Parameters: map[string]string{
					"message": LiveMessage(handle, opts.StreamURLBase),
					"chat_id": chatID,
					"webhook": opts.WebhookURL,
				},
				Position: model.Position{X: 400, Y: 240},
			},
		},
		Edges: []model.WorkflowEdge{{Source: triggerRef, Target: actionRef}},
	}
}
