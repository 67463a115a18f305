package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"streamer-live-bot/internal/domain"
	"streamer-live-bot/internal/domain/model"
	"streamer-live-bot/internal/domain/ports/adapter"
	"streamer-live-bot/internal/domain/ports/repository"
	"streamer-live-bot/internal/infra/logging"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"
)

const (
	PageSize = 8

	deleteConcurrency = 4

	defaultGatewayTimeout = 15 * time.Second
	discardTimeout        = 30 * time.Second
	lockMargin            = 15 * time.Second
	// Create, run and up to three rollback deletes.
	gatewayCallsPerAdd = 5
)

var _ WatchUseCase = (*watchUC)(nil)

// WatchUseCase owns the watchlist and keeps it in step with the remote workflows.
type WatchUseCase interface {
	AddStreamer(ctx context.Context, tgID, chatID int64, raw string) (*AddResult, error)
	RemoveStreamer(ctx context.Context, tgID int64, raw string) (*RemoveResult, error)
	// DeleteWorkflow removes the watch entry served by workflowID. Only
	// workflows owned by tgID are considered.
	DeleteWorkflow(ctx context.Context, tgID int64, workflowID string) (*RemoveResult, error)

	RequestDeleteAll(ctx context.Context, tgID int64) (int, error)
	ConfirmDeleteAll(ctx context.Context, tgID int64) (*DeleteAllResult, error)
	CancelDeleteAll(ctx context.Context, tgID int64) error

	ListPage(ctx context.Context, tgID int64, page int) (*WatchPage, error)

	// AwaitHandle marks that the next plain message is a handle.
	AwaitHandle(ctx context.Context, tgID int64) error
	// TakeAwaitingHandle reports and clears the AwaitHandle mark.
	TakeAwaitingHandle(ctx context.Context, tgID int64) bool
}

type AddResult struct {
	Handle     string
	WorkflowID string
}

type RemoveResult struct {
	Handle     string
	WorkflowID string
	// RemoteErr is set when the remote workflow could not be deleted. The
	// local records are gone regardless.
	RemoteErr error
}

type DeleteAllResult struct {
	Removed       int
	RemoteFailed  []string
	RemoteDeleted int
}

type WatchPage struct {
	Items      []*model.WatchItem
	Page       int // zero based
	TotalPages int
	Total      int
	HasPrev    bool
	HasNext    bool
	// Stale is set when live states could not be fetched.
	Stale bool
}

type watchUC struct {
	repo    repository.SessionRepository
	tm      repository.TransactionManager
	gateway adapter.WorkflowGateway
	locker  repository.Locker
	states  repository.StateRepository
	opts    WatchWorkflowOptions
	log     *zerolog.Logger

	listGroup singleflight.Group
}

func NewWatchUseCase(
	repo repository.SessionRepository,
	tm repository.TransactionManager,
	gateway adapter.WorkflowGateway,
	locker repository.Locker,
	states repository.StateRepository,
	opts WatchWorkflowOptions,
	logger *zerolog.Logger,
) *watchUC {
	return &watchUC{
		repo:    repo,
		tm:      tm,
		gateway: gateway,
		locker:  locker,
		states:  states,
		opts:    opts,
		log:     logger,
	}
}

func (u *watchUC) gatewayTimeout() time.Duration {
	if u.opts.GatewayTimeout > 0 {
		return u.opts.GatewayTimeout
	}
	return defaultGatewayTimeout
}

// mutationLockTTL outlasts the slowest single add or remove, including the
// cleanup of a workflow whose local save failed.
func (u *watchUC) mutationLockTTL() time.Duration {
	return gatewayCallsPerAdd*u.gatewayTimeout() + discardTimeout + lockMargin
}

// deleteAllLockTTL outlasts n remote deletes run deleteConcurrency at a time.
func (u *watchUC) deleteAllLockTTL(n int) time.Duration {
	rounds := (n + deleteConcurrency - 1) / deleteConcurrency
	return max(u.mutationLockTTL(), time.Duration(rounds)*u.gatewayTimeout()+lockMargin)
}

// lockUser serializes every watchlist mutation of one user. ttl must cover
// the whole critical section or a second writer can get in.
func (u *watchUC) lockUser(ctx context.Context, tgID int64, ttl time.Duration) (func(), error) {
	key := "watch:" + strconv.FormatInt(tgID, 10)
	token, err := u.locker.Lock(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			u.log.Warn().Err(err).Str("key", key).Msg("unlock failed; lock will expire")
		}
	}, nil
}

func (u *watchUC) AddStreamer(ctx context.Context, tgID, chatID int64, raw string) (*AddResult, error) {
	defer logging.TraceDuration(u.log, "WatchUC.AddStreamer")()

	handle := model.NormalizeHandle(raw)
	if err := model.ValidateHandle(handle); err != nil {
		return nil, err
	}

	unlock, err := u.lockUser(ctx, tgID, u.mutationLockTTL())
	if err != nil {
		return nil, err
	}
	defer unlock()

	watched, err := u.repo.ListWatchedStreamers(ctx, repository.NoTX, tgID)
	if err != nil {
		return nil, err
	}
	if slices.Contains(watched, handle) {
		return nil, &domain.DuplicateError{Handle: handle}
	}

	sess, err := u.repo.GetOrCreateUser(ctx, repository.NoTX, tgID, chatID)
	if err != nil {
		return nil, err
	}

	spec := BuildWatchWorkflow(handle, strconv.FormatInt(sess.ChatID, 10), u.opts)
	workflowID, err := u.gateway.Create(ctx, spec)
	if err != nil {
		return nil, err
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		added, err := u.repo.AddStreamer(ctx, tx, tgID, handle)
		if err != nil {
			return err
		}
		if !added {
			return &domain.DuplicateError{Handle: handle}
		}
		return u.repo.RecordWorkflow(ctx, tx, tgID, handle, workflowID)
	})
	if err != nil {
		u.discardRemote(ctx, workflowID, err)
		return nil, err
	}

	u.log.Info().Int64("tg_id", tgID).Str("handle", handle).Str("workflow_id", workflowID).Msg("streamer watched")
	return &AddResult{Handle: handle, WorkflowID: workflowID}, nil
}

// discardRemote deletes a workflow whose local records could not be saved.
func (u *watchUC) discardRemote(ctx context.Context, workflowID string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discardTimeout)
	defer cancel()
	if err := u.gateway.Delete(ctx, workflowID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		u.log.Error().Err(err).AnErr("cause", cause).Str("workflow_id", workflowID).Msg("orphaned remote workflow after failed save")
	}
}

func (u *watchUC) RemoveStreamer(ctx context.Context, tgID int64, raw string) (*RemoveResult, error) {
	defer logging.TraceDuration(u.log, "WatchUC.RemoveStreamer")()

	handle := model.NormalizeHandle(raw)
	if err := model.ValidateHandle(handle); err != nil {
		return nil, err
	}
	unlock, err := u.lockUser(ctx, tgID, u.mutationLockTTL())
	if err != nil {
		return nil, err
	}
	defer unlock()

	watched, err := u.repo.ListWatchedStreamers(ctx, repository.NoTX, tgID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(watched, handle) {
		return nil, domain.ErrNotFound
	}
	return u.removeLocked(ctx, tgID, handle)
}

func (u *watchUC) DeleteWorkflow(ctx context.Context, tgID int64, workflowID string) (*RemoveResult, error) {
	defer logging.TraceDuration(u.log, "WatchUC.DeleteWorkflow")()

	if workflowID == "" {
		return nil, &domain.ValidationError{Field: "workflow id", Value: workflowID, Reason: "workflow id is required"}
	}
	unlock, err := u.lockUser(ctx, tgID, u.mutationLockTTL())
	if err != nil {
		return nil, err
	}
	defer unlock()

	handle, err := u.repo.FindHandleByWorkflowID(ctx, repository.NoTX, tgID, workflowID)
	if err != nil {
		return nil, err
	}
	return u.removeLocked(ctx, tgID, handle)
}

// removeLocked deletes the remote workflow, then the local records whatever
// the remote outcome was. The caller holds the user lock.
func (u *watchUC) removeLocked(ctx context.Context, tgID int64, handle string) (*RemoveResult, error) {
	res := &RemoveResult{Handle: handle}

	id, ok, err := u.repo.GetWorkflowID(ctx, repository.NoTX, tgID, handle)
	if err != nil {
		return nil, err
	}
	if ok {
		res.WorkflowID = id
		if err := u.gateway.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			res.RemoteErr = err
			u.log.Warn().Err(err).Str("workflow_id", id).Msg("remote delete failed; removing local records anyway")
		}
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.repo.DeleteWorkflowRecord(ctx, tx, tgID, handle); err != nil {
			return err
		}
		_, err := u.repo.RemoveStreamer(ctx, tx, tgID, handle)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (u *watchUC) RequestDeleteAll(ctx context.Context, tgID int64) (int, error) {
	defer logging.TraceDuration(u.log, "WatchUC.RequestDeleteAll")()

	watched, err := u.repo.ListWatchedStreamers(ctx, repository.NoTX, tgID)
	if err != nil {
		return 0, err
	}
	if len(watched) == 0 {
		return 0, nil
	}
	st := &repository.ConversationState{
		Step: repository.StepConfirmDeleteAll,
		Data: map[string]string{"count": strconv.Itoa(len(watched))},
	}
	if err := u.states.SetState(ctx, tgID, st); err != nil {
		return 0, fmt.Errorf("store confirmation: %w", err)
	}
	return len(watched), nil
}

func (u *watchUC) ConfirmDeleteAll(ctx context.Context, tgID int64) (*DeleteAllResult, error) {
	defer logging.TraceDuration(u.log, "WatchUC.ConfirmDeleteAll")()

	st, err := u.states.GetState(ctx, tgID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && st.Step != repository.StepConfirmDeleteAll) {
		return nil, domain.ErrConfirmationExpired
	}
	if err != nil {
		return nil, fmt.Errorf("load confirmation: %w", err)
	}
	if err := u.states.ClearState(ctx, tgID); err != nil {
		u.log.Warn().Err(err).Int64("tg_id", tgID).Msg("could not clear confirmation state")
	}
	count, _ := strconv.Atoi(st.Data["count"])
	ttl := u.deleteAllLockTTL(count)

	unlock, err := u.lockUser(ctx, tgID, ttl)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tracked, err := u.repo.ListTrackedWorkflows(ctx, repository.NoTX, tgID)
	if err != nil {
		return nil, err
	}

	type outcome struct {
		id  string
		err error
	}
	// Deletes still pending when the lock would lapse are reported as failed.
	remoteCtx, cancel := context.WithTimeout(ctx, ttl-lockMargin)
	defer cancel()
	p := pool.NewWithResults[outcome]().WithMaxGoroutines(deleteConcurrency)
	for _, wf := range tracked {
		id := wf.WorkflowID
		p.Go(func() outcome {
			err := u.gateway.Delete(remoteCtx, id)
			if errors.Is(err, domain.ErrNotFound) {
				err = nil
			}
			return outcome{id: id, err: err}
		})
	}

	res := &DeleteAllResult{}
	for _, o := range p.Wait() {
		if o.err != nil {
			res.RemoteFailed = append(res.RemoteFailed, o.id)
			u.log.Warn().Err(o.err).Str("workflow_id", o.id).Msg("remote delete failed during delete-all")
			continue
		}
		res.RemoteDeleted++
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		n, err := u.repo.RemoveAllStreamers(ctx, tx, tgID)
		res.Removed = n
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (u *watchUC) CancelDeleteAll(ctx context.Context, tgID int64) error {
	defer logging.TraceDuration(u.log, "WatchUC.CancelDeleteAll")()
	return u.states.ClearState(ctx, tgID)
}

func (u *watchUC) ListPage(ctx context.Context, tgID int64, page int) (*WatchPage, error) {
	defer logging.TraceDuration(u.log, "WatchUC.ListPage")()

	if page < 0 {
		page = 0
	}
	items, total, err := u.repo.ListWatchPage(ctx, repository.NoTX, tgID, page*PageSize, PageSize)
	if err != nil {
		return nil, err
	}
	totalPages := (total + PageSize - 1) / PageSize
	if total > 0 && page >= totalPages {
		page = totalPages - 1
		items, total, err = u.repo.ListWatchPage(ctx, repository.NoTX, tgID, page*PageSize, PageSize)
		if err != nil {
			return nil, err
		}
		totalPages = (total + PageSize - 1) / PageSize
	}

	wp := &WatchPage{
		Items:      items,
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
		HasPrev:    page > 0,
		HasNext:    (page+1)*PageSize < total,
	}
	if len(items) == 0 {
		return wp, nil
	}

	remote, err := u.remoteWorkflows(ctx)
	if err != nil {
		u.log.Warn().Err(err).Int64("tg_id", tgID).Msg("live workflow states unavailable; showing local status")
		wp.Stale = true
		return wp, nil
	}
	for _, it := range items {
		if it.WorkflowID == "" {
			continue
		}
		s, ok := remote[it.WorkflowID]
		if !ok {
			it.RemoteState = "missing"
			continue
		}
		it.RemoteState = s.State
		it.LastNotifiedAt = s.LastExecution
	}
	return wp, nil
}

// remoteWorkflows collapses concurrent list calls into one request.
func (u *watchUC) remoteWorkflows(ctx context.Context) (map[string]model.WorkflowSummary, error) {
	v, err, _ := u.listGroup.Do("workflows", func() (interface{}, error) {
		list, err := u.gateway.List(ctx)
		if err != nil {
			return nil, err
		}
		m := make(map[string]model.WorkflowSummary, len(list))
		for _, s := range list {
			m[s.ID] = s
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]model.WorkflowSummary), nil
}

func (u *watchUC) AwaitHandle(ctx context.Context, tgID int64) error {
	return u.states.SetState(ctx, tgID, &repository.ConversationState{Step: repository.StepAwaitingHandle})
}

func (u *watchUC) TakeAwaitingHandle(ctx context.Context, tgID int64) bool {
	st, err := u.states.GetState(ctx, tgID)
	if err != nil || st.Step != repository.StepAwaitingHandle {
		return false
	}
	if err := u.states.ClearState(ctx, tgID); err != nil {
		u.log.Warn().Err(err).Int64("tg_id", tgID).Msg("could not clear awaiting-handle state")
	}
	return true
}
