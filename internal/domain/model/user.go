package model

import (
	"time"

	"streamer-live-bot/internal/domain"
)

// UserSession is the per-Telegram-user record the bot keeps.
// ChatID is where notifications are delivered and follows the latest chat
// the user talked to the bot from.
type UserSession struct {
	TelegramID           int64
	ChatID               int64
	NotificationsEnabled bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func NewUserSession(tgID, chatID int64) (*UserSession, error) {
	if tgID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if chatID == 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &UserSession{
		TelegramID:           tgID,
		ChatID:               chatID,
		NotificationsEnabled: true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

func (u *UserSession) IsZero() bool { return u == nil || u.TelegramID == 0 }
