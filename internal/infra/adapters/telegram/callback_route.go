package telegram

import (
	"context"
	"strconv"
	"strings"

	"streamer-live-bot/internal/application"
)

// callback is an inline button press. MessageID is the message carrying the
// keyboard, used for edits in place.
type callback struct {
	TgID      int64
	ChatID    int64
	MessageID int
	Data      string
}

type cbHandler func(ctx context.Context, cb callback) error

type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

// Exact-match callbacks
func (r *Router) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		application.CbMenu:          r.menuCBRoute,
		application.CbAdd:           r.addCBRoute,
		application.CbList:          r.listCBRoute,
		application.CbToggle:        r.toggleCBRoute,
		application.CbDeleteAll:     r.deleteAllCBRoute,
		application.CbConfirmDelete: r.confirmDeleteAllCBRoute,
		application.CbCancelDelete:  r.cancelDeleteAllCBRoute,
		application.CbHelp:          r.helpCBRoute,
	}
}

// Prefix-match callbacks
func (r *Router) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{Prefix: application.CbRemovePrefix, Fn: r.removePrefixCBRoute},
		{Prefix: application.CbListPagePrefix, Fn: r.listPagePrefixCBRoute},
	}
}

func (r *Router) menuCBRoute(ctx context.Context, cb callback) error {
	reply, err := r.facade.Menu(ctx, cb.TgID, cb.ChatID)
	return r.reply(ctx, cb.ChatID, cb.MessageID, reply, err)
}

func (r *Router) addCBRoute(ctx context.Context, cb callback) error {
	reply, err := r.facade.AddPrompt(ctx, cb.TgID)
	return r.reply(ctx, cb.ChatID, 0, reply, err)
}

func (r *Router) listCBRoute(ctx context.Context, cb callback) error {
	reply, err := r.facade.List(ctx, cb.TgID, 0)
	return r.reply(ctx, cb.ChatID, 0, reply, err)
}

func (r *Router) listPagePrefixCBRoute(ctx context.Context, cb callback) error {
	page, err := strconv.Atoi(strings.TrimPrefix(cb.Data, application.CbListPagePrefix))
	if err != nil {
		page = 0
	}
	reply, err := r.facade.List(ctx, cb.TgID, page)
	if reply != nil {
		reply.Edit = true
	}
	return r.reply(ctx, cb.ChatID, cb.MessageID, reply, err)
}

func (r *Router) toggleCBRoute(ctx context.Context, cb callback) error {
	reply, err := r.facade.ToggleNotifications(ctx, cb.TgID, cb.ChatID)
	return r.reply(ctx, cb.ChatID, 0, reply, err)
}

func (r *Router) deleteAllCBRoute(ctx context.Context, cb callback) error {
	reply, err := r.facade.RequestDeleteAll(ctx, cb.TgID)
	return r.reply(ctx, cb.ChatID, 0, reply, err)
}

func (r *Router) confirmDeleteAllCBRoute(ctx context.Context, cb callback) error {
	reply, err := r.facade.ConfirmDeleteAll(ctx, cb.TgID)
	return r.reply(ctx, cb.ChatID, cb.MessageID, reply, err)
}

func (r *Router) cancelDeleteAllCBRoute(ctx context.Context, cb callback) error {
	reply, err := r.facade.CancelDeleteAll(ctx, cb.TgID)
	return r.reply(ctx, cb.ChatID, cb.MessageID, reply, err)
}

func (r *Router) helpCBRoute(ctx context.Context, cb callback) error {
	return r.reply(ctx, cb.ChatID, 0, r.facade.Help(ctx), nil)
}

func (r *Router) removePrefixCBRoute(ctx context.Context, cb callback) error {
	handle := strings.TrimPrefix(cb.Data, application.CbRemovePrefix)
	reply, err := r.facade.Remove(ctx, cb.TgID, handle)
	return r.reply(ctx, cb.ChatID, 0, reply, err)
}
