package usecase

import (
	"context"
	"errors"

	"streamer-live-bot/internal/domain"
	"streamer-live-bot/internal/domain/model"
	"streamer-live-bot/internal/domain/ports/repository"
	"streamer-live-bot/internal/infra/logging"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

var _ SessionUseCase = (*sessionUC)(nil)

// SessionUseCase manages the per-user session record.
type SessionUseCase interface {
	// Start registers the user or refreshes their chat id. created is true
	// the first time the user is seen.
	Start(ctx context.Context, tgID, chatID int64) (sess *model.UserSession, created bool, err error)
	Get(ctx context.Context, tgID int64) (*model.UserSession, error)
	ToggleNotifications(ctx context.Context, tgID, chatID int64) (bool, error)
	Count(ctx context.Context) (int, error)
}

type sessionUC struct {
	repo repository.SessionRepository
	tm   repository.TransactionManager
	log  *zerolog.Logger
}

func NewSessionUseCase(repo repository.SessionRepository, tm repository.TransactionManager, logger *zerolog.Logger) *sessionUC {
	return &sessionUC{repo: repo, tm: tm, log: logger}
}

func (u *sessionUC) Start(ctx context.Context, tgID, chatID int64) (*model.UserSession, bool, error) {
	defer logging.TraceDuration(u.log, "SessionUC.Start")()

	var sess *model.UserSession
	created := false
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		_, err := u.repo.FindUser(ctx, tx, tgID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			created = true
		case err != nil:
			return err
		}
		sess, err = u.repo.GetOrCreateUser(ctx, tx, tgID, chatID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return sess, created, nil
}

func (u *sessionUC) Get(ctx context.Context, tgID int64) (*model.UserSession, error) {
	defer logging.TraceDuration(u.log, "SessionUC.Get")()
	return u.repo.FindUser(ctx, repository.NoTX, tgID)
}

func (u *sessionUC) ToggleNotifications(ctx context.Context, tgID, chatID int64) (bool, error) {
	defer logging.TraceDuration(u.log, "SessionUC.ToggleNotifications")()

	var enabled bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(ctx context.Context, tx repository.Tx) error {
		sess, err := u.repo.GetOrCreateUser(ctx, tx, tgID, chatID)
		if err != nil {
			return err
		}
		enabled = !sess.NotificationsEnabled
		return u.repo.SetNotificationsEnabled(ctx, tx, tgID, enabled)
	})
	return enabled, err
}

func (u *sessionUC) Count(ctx context.Context) (int, error) {
	defer logging.TraceDuration(u.log, "SessionUC.Count")()
	return u.repo.CountUsers(ctx, repository.NoTX)
}
