package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"streamer-live-bot/internal/application"
	"streamer-live-bot/internal/config"
	"streamer-live-bot/internal/domain/ports/adapter"
	"streamer-live-bot/internal/infra/worker"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// RealTelegramBotAdapter talks to the Bot API with long polling.
type RealTelegramBotAdapter struct {
	bot        *tgbotapi.BotAPI
	cfg        *config.BotConfig
	translator application.Translator
	log        *zerolog.Logger

	mu            sync.Mutex
	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, translator application.Translator, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if translator == nil {
		return nil, errors.New("translator is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("username", bot.Self.UserName).Msg("telegram bot authorized")
	return &RealTelegramBotAdapter{bot: bot, cfg: cfg, translator: translator, log: logger}, nil
}

// StartPolling feeds updates to router through a worker pool until ctx ends.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context, router *Router) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancelPolling = cancel
	r.mu.Unlock()

	if _, err := r.bot.Request(tgbotapi.NewSetMyCommands(r.menuCommands(false)...)); err != nil {
		r.log.Warn().Err(err).Msg("failed to set default menu commands")
	}

	// handlers keep running on a detached context so in-flight updates finish
	pool := worker.NewPool(r.cfg.Workers, r.log)
	pool.Start(context.WithoutCancel(ctx))

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			pool.Stop()
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				pool.Stop()
				return nil
			}
			if err := pool.SubmitWait(ctx, func(ctx context.Context) error {
				return router.HandleUpdate(ctx, up)
			}); err != nil {
				r.log.Warn().Err(err).Int("update_id", up.UpdateID).Msg("update dropped")
			}
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, p adapter.SendMessageParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(p.ChatID, p.Text)
	msg.ParseMode = p.ParseMode
	msg.DisableWebPagePreview = true
	if kb, ok := inlineKeyboard(p.ReplyMarkup); ok {
		msg.ReplyMarkup = kb
	}
	_, err := r.bot.Send(msg)
	return err
}

func (r *RealTelegramBotAdapter) EditMessage(ctx context.Context, p adapter.EditMessageParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(p.ChatID, p.MessageID, p.Text)
	edit.ParseMode = p.ParseMode
	edit.DisableWebPagePreview = true
	if kb, ok := inlineKeyboard(p.ReplyMarkup); ok {
		edit.ReplyMarkup = &kb
	}
	_, err := r.bot.Send(edit)
	return err
}

func (r *RealTelegramBotAdapter) SendPhoto(ctx context.Context, p adapter.SendPhotoParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(p.ChatID, tgbotapi.FileURL(p.PhotoURL))
	photo.Caption = p.Caption
	photo.ParseMode = p.ParseMode
	if kb, ok := inlineKeyboard(p.ReplyMarkup); ok {
		photo.ReplyMarkup = kb
	}
	_, err := r.bot.Send(photo)
	return err
}

func (r *RealTelegramBotAdapter) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.bot.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context, chatID int64, isAdmin bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := tgbotapi.NewSetMyCommandsWithScope(tgbotapi.NewBotCommandScopeChat(chatID), r.menuCommands(isAdmin)...)
	_, err := r.bot.Request(cfg)
	return err
}

func (r *RealTelegramBotAdapter) menuCommands(isAdmin bool) []tgbotapi.BotCommand {
	cmds := make([]tgbotapi.BotCommand, 0, len(menuCommands)+1)
	for _, c := range menuCommands {
		cmds = append(cmds, tgbotapi.BotCommand{Command: c, Description: r.translator.T("cmd_" + c + "_desc")})
	}
	if isAdmin {
		cmds = append(cmds, tgbotapi.BotCommand{Command: "stats", Description: r.translator.T("cmd_stats_desc")})
	}
	return cmds
}

// inlineKeyboard converts the port markup. URL wins over Data; a button with
// neither sends its label as data.
func inlineKeyboard(m *adapter.ReplyMarkup) (tgbotapi.InlineKeyboardMarkup, bool) {
	if m == nil || !m.IsInline || len(m.Buttons) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(m.Buttons))
	for _, row := range m.Buttons {
		if len(row) == 0 {
			continue
		}
		kbRow := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				kbRow = append(kbRow, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				kbRow = append(kbRow, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				kbRow = append(kbRow, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		rows = append(rows, kbRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}
