package telegram

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"streamer-live-bot/internal/application"
	"streamer-live-bot/internal/config"
	"streamer-live-bot/internal/domain/ports/adapter"
	"streamer-live-bot/internal/infra/logging"
	"streamer-live-bot/internal/infra/metrics"
	red "streamer-live-bot/internal/infra/redis"
)

// RateLimiter is satisfied by the Redis and in-process limiters.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// menuCommands are the user commands shown in the Telegram menu, in order.
var menuCommands = []string{"start", "add", "remove", "list", "notifications", "delete", "deleteall", "help"}

// Router turns updates into facade calls and renders the replies. Each
// update is handled independently; a failure only affects its own chat.
type Router struct {
	facade  *application.BotFacade
	out     adapter.TelegramBotAdapter
	limiter RateLimiter
	log     *zerolog.Logger

	admins     map[int64]struct{}
	rateLimit  int
	rateWindow time.Duration
	ackTimeout time.Duration
}

func NewRouter(cfg *config.BotConfig, facade *application.BotFacade, out adapter.TelegramBotAdapter, limiter RateLimiter, logger *zerolog.Logger) *Router {
	admins := make(map[int64]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		admins[id] = struct{}{}
	}
	return &Router{
		facade:     facade,
		out:        out,
		limiter:    limiter,
		log:        logger,
		admins:     admins,
		rateLimit:  cfg.RateLimit,
		rateWindow: cfg.RateWindow,
		ackTimeout: 3 * time.Second,
	}
}

func (r *Router) isAdmin(tgID int64) bool {
	_, ok := r.admins[tgID]
	return ok
}

// HandleUpdate processes one update. Panics are recovered and answered with
// a generic error reply.
func (r *Router) HandleUpdate(ctx context.Context, update tgbotapi.Update) (err error) {
	ctx = logging.WithTraceID(ctx, ulid.Make().String())
	chatID, tgID := updateChat(update)
	if tgID != 0 {
		ctx = logging.WithTgID(ctx, tgID)
	}
	if chatID != 0 {
		ctx = logging.WithChatID(ctx, chatID)
	}
	log := logging.With(ctx, r.log)

	defer func() {
		if rec := recover(); rec != nil {
			metrics.IncHandlerPanic()
			log.Error().Interface("panic", rec).Bytes("stack", debug.Stack()).Int("update_id", update.UpdateID).Msg("update handler panicked")
			err = fmt.Errorf("panic: %v", rec)
			if chatID != 0 {
				r.send(ctx, chatID, 0, r.facade.Unexpected())
			}
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		err = r.handleQuery(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil && update.Message.Chat != nil:
		err = r.handleMessage(ctx, update.Message)
	default:
		return nil
	}
	if err != nil {
		log.Error().Err(err).Int("update_id", update.UpdateID).Msg("update handling failed")
		if chatID != 0 {
			r.send(ctx, chatID, 0, r.facade.Unexpected())
		}
	}
	return err
}

func updateChat(update tgbotapi.Update) (chatID, tgID int64) {
	switch {
	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		if q.From != nil {
			tgID = q.From.ID
		}
		if q.Message != nil && q.Message.Chat != nil {
			chatID = q.Message.Chat.ID
		} else {
			chatID = tgID
		}
	case update.Message != nil:
		if update.Message.From != nil {
			tgID = update.Message.From.ID
		}
		if update.Message.Chat != nil {
			chatID = update.Message.Chat.ID
		}
	}
	return chatID, tgID
}

func (r *Router) allow(ctx context.Context, tgID int64, bucket string) bool {
	if r.limiter == nil || r.rateLimit <= 0 {
		return true
	}
	ok, err := r.limiter.Allow(ctx, red.UserCommandKey(tgID, bucket), r.rateLimit, r.rateWindow)
	if err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("rate limiter unavailable; allowing")
		return true
	}
	if !ok {
		metrics.IncRateLimitTriggered()
	}
	return ok
}

func (r *Router) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	tgID, chatID := message.From.ID, message.Chat.ID

	if message.IsCommand() {
		cmd := message.Command()
		if !r.allow(ctx, tgID, "/"+cmd) {
			r.send(ctx, chatID, 0, r.facade.RateLimited())
			return nil
		}
		handler, ok := r.commandRoutes()[cmd]
		if !ok {
			metrics.IncTelegramRoute("unknown")
			r.send(ctx, chatID, 0, r.facade.UnknownCommand())
			return nil
		}
		metrics.IncTelegramRoute("/" + cmd)
		return handler(ctx, message)
	}

	text := strings.TrimSpace(message.Text)
	if text == "" {
		return nil
	}
	if !r.allow(ctx, tgID, "text") {
		r.send(ctx, chatID, 0, r.facade.RateLimited())
		return nil
	}
	metrics.IncTelegramRoute("text")
	reply, err := r.facade.FreeText(ctx, tgID, chatID, text)
	return r.reply(ctx, chatID, 0, reply, err)
}

func (r *Router) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query.From == nil {
		return errors.New("callback query without sender")
	}
	r.ack(ctx, query.ID)

	cb := callback{TgID: query.From.ID, ChatID: query.From.ID, Data: strings.TrimSpace(query.Data)}
	if query.Message != nil {
		cb.MessageID = query.Message.MessageID
		if query.Message.Chat != nil {
			cb.ChatID = query.Message.Chat.ID
		}
	}

	if !r.allow(ctx, cb.TgID, "cb") {
		r.send(ctx, cb.ChatID, 0, r.facade.RateLimited())
		return nil
	}

	if fn, ok := r.cbRoutes()[cb.Data]; ok {
		metrics.IncTelegramRoute(cb.Data)
		return fn(ctx, cb)
	}
	for _, pr := range r.cbPrefixRoutes() {
		if strings.HasPrefix(cb.Data, pr.Prefix) {
			metrics.IncTelegramRoute(pr.Prefix)
			return pr.Fn(ctx, cb)
		}
	}
	metrics.IncTelegramRoute("unknown_callback")
	logging.With(ctx, r.log).Warn().Str("data", cb.Data).Msg("unknown callback data")
	return nil
}

// ack stops the button spinner. Failures are logged and otherwise ignored.
func (r *Router) ack(ctx context.Context, callbackID string) {
	actx, cancel := context.WithTimeout(ctx, r.ackTimeout)
	defer cancel()
	if err := r.out.AnswerCallback(actx, callbackID, ""); err != nil {
		metrics.IncCallbackAckFailed()
		logging.With(ctx, r.log).Warn().Err(err).Msg("callback acknowledgement failed")
	}
}

// reply renders a facade result. Unmapped errors go back to HandleUpdate.
func (r *Router) reply(ctx context.Context, chatID int64, messageID int, reply *application.Reply, err error) error {
	if err != nil {
		return err
	}
	if reply == nil {
		return nil
	}
	r.send(ctx, chatID, messageID, reply)
	return nil
}

// send delivers reply, editing messageID in place when asked. Edit and photo
// failures fall back to a plain message.
func (r *Router) send(ctx context.Context, chatID int64, messageID int, reply *application.Reply) {
	log := logging.With(ctx, r.log)
	if reply.Edit && messageID != 0 {
		err := r.out.EditMessage(ctx, adapter.EditMessageParams{
			ChatID: chatID, MessageID: messageID, Text: reply.Text, ParseMode: reply.ParseMode, ReplyMarkup: reply.Markup,
		})
		if err == nil {
			return
		}
		log.Debug().Err(err).Msg("edit failed; sending a new message")
	}
	if reply.PhotoURL != "" {
		err := r.out.SendPhoto(ctx, adapter.SendPhotoParams{
			ChatID: chatID, PhotoURL: reply.PhotoURL, Caption: reply.Text, ParseMode: reply.ParseMode, ReplyMarkup: reply.Markup,
		})
		if err == nil {
			return
		}
		log.Warn().Err(err).Msg("photo failed; sending text only")
	}
	params := adapter.SendMessageParams{ChatID: chatID, Text: reply.Text, ParseMode: reply.ParseMode, ReplyMarkup: reply.Markup}
	err := r.out.SendMessage(ctx, params)
	if err != nil && params.ParseMode != "" {
		// usually a Markdown entity Telegram refused to parse
		log.Warn().Err(err).Msg("formatted send failed; retrying as plain text")
		params.ParseMode = ""
		err = r.out.SendMessage(ctx, params)
	}
	if err != nil {
		log.Error().Err(err).Msg("send message failed")
	}
}
