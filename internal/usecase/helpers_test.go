//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"streamer-live-bot/internal/domain/ports/repository"
	"streamer-live-bot/internal/infra/adapters/workflow"
	"streamer-live-bot/internal/infra/db/memory"
	"streamer-live-bot/internal/infra/inproc"
	"streamer-live-bot/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

var testOpts = usecase.WatchWorkflowOptions{
	TriggerBlockID: 103,
	ActionBlockID:  100001,
	StreamURLBase:  "https://portal.abs.xyz/stream/",
	WebhookURL:     "https://api.telegram.org/botTEST/sendMessage",
}

// hookedRepo wraps a real store and lets a test replace single methods.
type hookedRepo struct {
	repository.SessionRepository

	AddStreamerFunc          func(ctx context.Context, tx repository.Tx, tgID int64, handle string) (bool, error)
	RecordWorkflowFunc       func(ctx context.Context, tx repository.Tx, tgID int64, handle, workflowID string) error
	ListWatchedStreamersFunc func(ctx context.Context, tx repository.Tx, tgID int64) ([]string, error)
}

func (h *hookedRepo) AddStreamer(ctx context.Context, tx repository.Tx, tgID int64, handle string) (bool, error) {
	if h.AddStreamerFunc != nil {
		return h.AddStreamerFunc(ctx, tx, tgID, handle)
	}
	return h.SessionRepository.AddStreamer(ctx, tx, tgID, handle)
}

func (h *hookedRepo) RecordWorkflow(ctx context.Context, tx repository.Tx, tgID int64, handle, workflowID string) error {
	if h.RecordWorkflowFunc != nil {
		return h.RecordWorkflowFunc(ctx, tx, tgID, handle, workflowID)
	}
	return h.SessionRepository.RecordWorkflow(ctx, tx, tgID, handle, workflowID)
}

func (h *hookedRepo) ListWatchedStreamers(ctx context.Context, tx repository.Tx, tgID int64) ([]string, error) {
	if h.ListWatchedStreamersFunc != nil {
		return h.ListWatchedStreamersFunc(ctx, tx, tgID)
	}
	return h.SessionRepository.ListWatchedStreamers(ctx, tx, tgID)
}

type watchFixture struct {
	store  *memory.Store
	repo   *hookedRepo
	gw     *workflow.InMemoryGateway
	states *inproc.StateStore
	uc     usecase.WatchUseCase
}

func newWatchFixture() *watchFixture {
	store := memory.NewStore()
	f := &watchFixture{
		store:  store,
		repo:   &hookedRepo{SessionRepository: store},
		gw:     workflow.NewInMemoryGateway(),
		states: inproc.NewStateStore(5 * time.Minute),
	}
	f.uc = usecase.NewWatchUseCase(f.repo, store, f.gw, inproc.NewKeyLocker(time.Second), f.states, testOpts, newTestLogger())
	return f
}
