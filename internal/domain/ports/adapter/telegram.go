// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

// Button is one inline keyboard button. URL wins over Data.
type Button struct {
	Text string
	Data string
	URL  string
}

type ReplyMarkup struct {
	Buttons  [][]Button
	IsInline bool
}

type SendMessageParams struct {
	ChatID      int64
	Text        string
	ParseMode   string
	ReplyMarkup *ReplyMarkup
}

type EditMessageParams struct {
	ChatID      int64
	MessageID   int
	Text        string
	ParseMode   string
	ReplyMarkup *ReplyMarkup
}

type SendPhotoParams struct {
	ChatID      int64
	PhotoURL    string
	Caption     string
	ParseMode   string
	ReplyMarkup *ReplyMarkup
}

// TelegramBotAdapter is the outbound side of the chat transport.
type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, params SendMessageParams) error
	EditMessage(ctx context.Context, params EditMessageParams) error
	SendPhoto(ctx context.Context, params SendPhotoParams) error
	// AnswerCallback stops the client-side spinner of an inline button press.
	AnswerCallback(ctx context.Context, callbackID, text string) error
	// SetMenuCommands installs the per-chat command menu; admins also see
	// operator commands.
	SetMenuCommands(ctx context.Context, chatID int64, isAdmin bool) error
}
