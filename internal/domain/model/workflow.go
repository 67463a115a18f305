package model

import "time"

type NodeType string

const (
	NodeTrigger NodeType = "trigger"
	NodeAction  NodeType = "action"
)

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type WorkflowNode struct {
	Ref        string            `json:"ref"`
	BlockID    int               `json:"blockId"`
	Type       NodeType          `json:"type"`
	State      string            `json:"state"`
	Parameters map[string]string `json:"parameters"`
	Position   Position          `json:"position"`
}

type WorkflowEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// WorkflowSpec is the body submitted to create a remote workflow.
type WorkflowSpec struct {
	Name  string         `json:"name"`
	State string         `json:"state"`
	Nodes []WorkflowNode `json:"nodes"`
	Edges []WorkflowEdge `json:"edges"`
}

// WorkflowSummary is one workflow as reported by the remote API.
type WorkflowSummary struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	State         string     `json:"state"`
	DateCreated   time.Time  `json:"dateCreated"`
	LastExecution *time.Time `json:"lastExecution,omitempty"`
}
