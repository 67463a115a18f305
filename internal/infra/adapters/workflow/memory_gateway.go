package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"streamer-live-bot/internal/domain"
	"streamer-live-bot/internal/domain/model"
	"streamer-live-bot/internal/domain/ports/adapter"
)

var _ adapter.WorkflowGateway = (*InMemoryGateway)(nil)

// InMemoryGateway stands in for the remote API in dev mode and tests.
// The Fail* hooks, when set, are consulted before each operation.
type InMemoryGateway struct {
	mu        sync.Mutex
	seq       int
	workflows map[string]model.WorkflowSummary
	specs     map[string]model.WorkflowSpec

	FailCreate func(spec model.WorkflowSpec) error
	FailRun    func(id string) error
	FailList   func() error
	FailDelete func(id string) error

	CreateCalls int
	RunCalls    int
	DeleteCalls int
}

func NewInMemoryGateway() *InMemoryGateway {
	return &InMemoryGateway{
		workflows: map[string]model.WorkflowSummary{},
		specs:     map[string]model.WorkflowSpec{},
	}
}

func (g *InMemoryGateway) Create(ctx context.Context, spec model.WorkflowSpec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &domain.GatewayError{Kind: domain.GatewayNetwork, Op: "create", Message: "automation service timed out", Err: err}
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.CreateCalls++
	if g.FailCreate != nil {
		if err := g.FailCreate(spec); err != nil {
			return "", err
		}
	}
	g.seq++
	id := fmt.Sprintf("wf-%d", g.seq)
	g.workflows[id] = model.WorkflowSummary{ID: id, Name: spec.Name, State: string(model.WorkflowInactive), DateCreated: time.Now()}
	g.specs[id] = spec

	g.RunCalls++
	if g.FailRun != nil {
		if err := g.FailRun(id); err != nil {
			delete(g.workflows, id)
			delete(g.specs, id)
			return "", err
		}
	}
	wf := g.workflows[id]
	wf.State = string(model.WorkflowActive)
	g.workflows[id] = wf
	return id, nil
}

func (g *InMemoryGateway) List(ctx context.Context) ([]model.WorkflowSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailList != nil {
		if err := g.FailList(); err != nil {
			return nil, err
		}
	}
	out := make([]model.WorkflowSummary, 0, len(g.workflows))
	for _, wf := range g.workflows {
		out = append(out, wf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (g *InMemoryGateway) Delete(ctx context.Context, workflowID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.DeleteCalls++
	if g.FailDelete != nil {
		if err := g.FailDelete(workflowID); err != nil {
			return err
		}
	}
	if _, ok := g.workflows[workflowID]; !ok {
		return &domain.GatewayError{Kind: domain.GatewayNotFound, Op: "delete", Status: 404, Message: "workflow not found"}
	}
	delete(g.workflows, workflowID)
	delete(g.specs, workflowID)
	return nil
}

// Spec returns the graph submitted for id.
func (g *InMemoryGateway) Spec(id string) (model.WorkflowSpec, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.specs[id]
	return s, ok
}

// SetState changes the reported state of a workflow.
func (g *InMemoryGateway) SetState(id, state string, lastExecution *time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if wf, ok := g.workflows[id]; ok {
		wf.State = state
		wf.LastExecution = lastExecution
		g.workflows[id] = wf
	}
}

// Count returns the number of remote workflows.
func (g *InMemoryGateway) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.workflows)
}
