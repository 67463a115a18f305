package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"streamer-live-bot/internal/infra/logging"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes maps a command (without the slash) to its handler.
func (r *Router) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":         r.handleStartCommand,
		"add":           r.handleAddCommand,
		"remove":        r.handleRemoveCommand,
		"list":          r.handleListCommand,
		"notifications": r.handleNotificationsCommand,
		"delete":        r.handleDeleteCommand,
		"deleteall":     r.handleDeleteAllCommand,
		"help":          r.handleHelpCommand,

		"stats": r.adminOnly(r.handleStatsCommand),
	}
}

func (r *Router) adminOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		if !r.isAdmin(message.From.ID) {
			r.send(ctx, message.Chat.ID, 0, r.facade.Unauthorized())
			return nil
		}
		return next(ctx, message)
	}
}

func (r *Router) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	if err := r.out.SetMenuCommands(ctx, message.Chat.ID, r.isAdmin(message.From.ID)); err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("failed to set menu commands")
	}
	reply, err := r.facade.Start(ctx, message.From.ID, message.Chat.ID)
	return r.reply(ctx, message.Chat.ID, 0, reply, err)
}

func (r *Router) handleAddCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply, err := r.facade.Add(ctx, message.From.ID, message.Chat.ID, message.CommandArguments())
	return r.reply(ctx, message.Chat.ID, 0, reply, err)
}

func (r *Router) handleRemoveCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply, err := r.facade.Remove(ctx, message.From.ID, message.CommandArguments())
	return r.reply(ctx, message.Chat.ID, 0, reply, err)
}

func (r *Router) handleListCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply, err := r.facade.List(ctx, message.From.ID, 0)
	return r.reply(ctx, message.Chat.ID, 0, reply, err)
}

func (r *Router) handleNotificationsCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply, err := r.facade.ToggleNotifications(ctx, message.From.ID, message.Chat.ID)
	return r.reply(ctx, message.Chat.ID, 0, reply, err)
}

func (r *Router) handleDeleteCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply, err := r.facade.DeleteWorkflow(ctx, message.From.ID, message.CommandArguments())
	return r.reply(ctx, message.Chat.ID, 0, reply, err)
}

func (r *Router) handleDeleteAllCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply, err := r.facade.RequestDeleteAll(ctx, message.From.ID)
	return r.reply(ctx, message.Chat.ID, 0, reply, err)
}

func (r *Router) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.reply(ctx, message.Chat.ID, 0, r.facade.Help(ctx), nil)
}

func (r *Router) handleStatsCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply, err := r.facade.Stats(ctx)
	return r.reply(ctx, message.Chat.ID, 0, reply, err)
}
