package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"streamer-live-bot/internal/domain"
	"streamer-live-bot/internal/domain/model"
	"streamer-live-bot/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*PostgresSessionRepo)(nil)

type PostgresSessionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSessionRepo(pool *pgxpool.Pool) *PostgresSessionRepo {
	return &PostgresSessionRepo{pool: pool}
}

func (r *PostgresSessionRepo) GetOrCreateUser(ctx context.Context, tx repository.Tx, tgID, chatID int64) (*model.UserSession, error) {
	if _, err := model.NewUserSession(tgID, chatID); err != nil {
		return nil, err
	}
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `
INSERT INTO bot_users (telegram_id, chat_id)
VALUES ($1, $2)
ON CONFLICT (telegram_id) DO UPDATE
   SET chat_id = EXCLUDED.chat_id,
       updated_at = CASE WHEN bot_users.chat_id <> EXCLUDED.chat_id THEN now() ELSE bot_users.updated_at END
RETURNING telegram_id, chat_id, notifications_enabled, created_at, updated_at;`
	var u model.UserSession
	if err := exec.QueryRow(ctx, q, tgID, chatID).Scan(&u.TelegramID, &u.ChatID, &u.NotificationsEnabled, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, storageErr("get or create user", err)
	}
	return &u, nil
}

func (r *PostgresSessionRepo) FindUser(ctx context.Context, tx repository.Tx, tgID int64) (*model.UserSession, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `SELECT telegram_id, chat_id, notifications_enabled, created_at, updated_at FROM bot_users WHERE telegram_id = $1;`
	var u model.UserSession
	if err := exec.QueryRow(ctx, q, tgID).Scan(&u.TelegramID, &u.ChatID, &u.NotificationsEnabled, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("find user", err)
	}
	return &u, nil
}

func (r *PostgresSessionRepo) SetNotificationsEnabled(ctx context.Context, tx repository.Tx, tgID int64, enabled bool) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := exec.Exec(ctx, `UPDATE bot_users SET notifications_enabled = $2, updated_at = now() WHERE telegram_id = $1;`, tgID, enabled)
	if err != nil {
		return storageErr("set notifications", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresSessionRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := exec.QueryRow(ctx, `SELECT COUNT(*) FROM bot_users;`).Scan(&n); err != nil {
		return 0, storageErr("count users", err)
	}
	return n, nil
}

func (r *PostgresSessionRepo) ListWatchedStreamers(ctx context.Context, tx repository.Tx, tgID int64) ([]string, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := exec.Query(ctx, `SELECT handle FROM watch_entries WHERE telegram_id = $1 ORDER BY created_at, id;`, tgID)
	if err != nil {
		return nil, storageErr("list streamers", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, storageErr("list streamers", domain.ErrReadDatabaseRow)
		}
		out = append(out, h)
	}
	return out, storageErr("list streamers", rows.Err())
}

func (r *PostgresSessionRepo) AddStreamer(ctx context.Context, tx repository.Tx, tgID int64, handle string) (bool, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	e := model.NewWatchEntry(tgID, handle)
	tag, err := exec.Exec(ctx, `
INSERT INTO watch_entries (id, telegram_id, handle, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (telegram_id, handle) DO NOTHING;`, e.ID, e.TelegramID, e.Handle, e.CreatedAt)
	if err != nil {
		return false, storageErr("add streamer", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresSessionRepo) RemoveStreamer(ctx context.Context, tx repository.Tx, tgID int64, handle string) (bool, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	// tracked_workflows rows go with the entry (ON DELETE CASCADE)
	tag, err := exec.Exec(ctx, `DELETE FROM watch_entries WHERE telegram_id = $1 AND handle = $2;`, tgID, handle)
	if err != nil {
		return false, storageErr("remove streamer", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresSessionRepo) RemoveAllStreamers(ctx context.Context, tx repository.Tx, tgID int64) (int, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	tag, err := exec.Exec(ctx, `DELETE FROM watch_entries WHERE telegram_id = $1;`, tgID)
	if err != nil {
		return 0, storageErr("remove all streamers", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresSessionRepo) ListWatchPage(ctx context.Context, tx repository.Tx, tgID int64, offset, limit int) ([]*model.WatchItem, int, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := exec.QueryRow(ctx, `SELECT COUNT(*) FROM watch_entries WHERE telegram_id = $1;`, tgID).Scan(&total); err != nil {
		return nil, 0, storageErr("count watches", err)
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = total
	}
	const q = `
SELECT w.handle, w.created_at, COALESCE(t.workflow_id, ''), COALESCE(t.status, 'inactive')
  FROM watch_entries w
  LEFT JOIN tracked_workflows t ON t.telegram_id = w.telegram_id AND t.handle = w.handle
 WHERE w.telegram_id = $1
 ORDER BY w.created_at, w.id
 OFFSET $2 LIMIT $3;`
	rows, err := exec.Query(ctx, q, tgID, offset, limit)
	if err != nil {
		return nil, 0, storageErr("list watches", err)
	}
	defer rows.Close()

	items := []*model.WatchItem{}
	for rows.Next() {
		var it model.WatchItem
		var status string
		if err := rows.Scan(&it.Handle, &it.CreatedAt, &it.WorkflowID, &status); err != nil {
			return nil, 0, storageErr("list watches", domain.ErrReadDatabaseRow)
		}
		it.Status = model.WorkflowStatus(status)
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storageErr("list watches", err)
	}
	return items, total, nil
}

func (r *PostgresSessionRepo) RecordWorkflow(ctx context.Context, tx repository.Tx, tgID int64, handle, workflowID string) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO tracked_workflows (telegram_id, handle, workflow_id, status)
SELECT $1, $2, $3, 'active'
 WHERE EXISTS (SELECT 1 FROM watch_entries WHERE telegram_id = $1 AND handle = $2)
ON CONFLICT (telegram_id, handle) DO UPDATE
   SET workflow_id = EXCLUDED.workflow_id, status = 'active', updated_at = now();`
	tag, err := exec.Exec(ctx, q, tgID, handle, workflowID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return storageErr("record workflow", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresSessionRepo) GetWorkflowID(ctx context.Context, tx repository.Tx, tgID int64, handle string) (string, bool, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return "", false, err
	}
	var id string
	err = exec.QueryRow(ctx, `SELECT workflow_id FROM tracked_workflows WHERE telegram_id = $1 AND handle = $2;`, tgID, handle).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr("get workflow id", err)
	}
	return id, true, nil
}

func (r *PostgresSessionRepo) DeleteWorkflowRecord(ctx context.Context, tx repository.Tx, tgID int64, handle string) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = exec.Exec(ctx, `DELETE FROM tracked_workflows WHERE telegram_id = $1 AND handle = $2;`, tgID, handle)
	return storageErr("delete workflow record", err)
}

func (r *PostgresSessionRepo) FindHandleByWorkflowID(ctx context.Context, tx repository.Tx, tgID int64, workflowID string) (string, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return "", err
	}
	var h string
	err = exec.QueryRow(ctx, `SELECT handle FROM tracked_workflows WHERE telegram_id = $1 AND workflow_id = $2;`, tgID, workflowID).Scan(&h)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", storageErr("find workflow", err)
	}
	return h, nil
}

func (r *PostgresSessionRepo) ListTrackedWorkflows(ctx context.Context, tx repository.Tx, tgID int64) ([]*model.TrackedWorkflow, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT t.telegram_id, t.handle, t.workflow_id, t.status, t.created_at, t.updated_at
  FROM tracked_workflows t
  JOIN watch_entries w ON w.telegram_id = t.telegram_id AND w.handle = t.handle
 WHERE t.telegram_id = $1
 ORDER BY w.created_at, w.id;`
	rows, err := exec.Query(ctx, q, tgID)
	if err != nil {
		return nil, storageErr("list workflows", err)
	}
	defer rows.Close()

	var out []*model.TrackedWorkflow
	for rows.Next() {
		var wf model.TrackedWorkflow
		var status string
		if err := rows.Scan(&wf.TelegramID, &wf.Handle, &wf.WorkflowID, &status, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
			return nil, storageErr("list workflows", domain.ErrReadDatabaseRow)
		}
		wf.Status = model.WorkflowStatus(status)
		out = append(out, &wf)
	}
	return out, storageErr("list workflows", rows.Err())
}
