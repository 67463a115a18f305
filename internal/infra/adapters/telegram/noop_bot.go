package telegram

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"streamer-live-bot/internal/domain/ports/adapter"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// Outbound is one call recorded by NoopBotAdapter.
type Outbound struct {
	Kind      string // message, edit, photo, answer, commands
	ChatID    int64
	MessageID int
	Text      string
	ParseMode string
	Markup    *adapter.ReplyMarkup
}

// NoopBotAdapter records outbound calls instead of sending them. Used for
// local runs without Telegram and by tests. The *Err hooks, when set, make
// the matching call fail.
type NoopBotAdapter struct {
	mu   sync.Mutex
	sent []Outbound
	log  *zerolog.Logger

	SendErr   func(p adapter.SendMessageParams) error
	EditErr   func(p adapter.EditMessageParams) error
	PhotoErr  func(p adapter.SendPhotoParams) error
	AnswerErr func(callbackID string) error
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	return &NoopBotAdapter{log: logger}
}

func (b *NoopBotAdapter) record(o Outbound) {
	b.mu.Lock()
	b.sent = append(b.sent, o)
	b.mu.Unlock()
	b.log.Debug().Str("kind", o.Kind).Int64("chat_id", o.ChatID).Str("text", o.Text).Msg("noop telegram")
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, p adapter.SendMessageParams) error {
	if b.SendErr != nil {
		if err := b.SendErr(p); err != nil {
			return err
		}
	}
	b.record(Outbound{Kind: "message", ChatID: p.ChatID, Text: p.Text, ParseMode: p.ParseMode, Markup: p.ReplyMarkup})
	return nil
}

func (b *NoopBotAdapter) EditMessage(ctx context.Context, p adapter.EditMessageParams) error {
	if b.EditErr != nil {
		if err := b.EditErr(p); err != nil {
			return err
		}
	}
	b.record(Outbound{Kind: "edit", ChatID: p.ChatID, MessageID: p.MessageID, Text: p.Text, ParseMode: p.ParseMode, Markup: p.ReplyMarkup})
	return nil
}

func (b *NoopBotAdapter) SendPhoto(ctx context.Context, p adapter.SendPhotoParams) error {
	if b.PhotoErr != nil {
		if err := b.PhotoErr(p); err != nil {
			return err
		}
	}
	b.record(Outbound{Kind: "photo", ChatID: p.ChatID, Text: p.Caption, ParseMode: p.ParseMode, Markup: p.ReplyMarkup})
	return nil
}

func (b *NoopBotAdapter) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if b.AnswerErr != nil {
		if err := b.AnswerErr(callbackID); err != nil {
			return err
		}
	}
	b.record(Outbound{Kind: "answer", Text: callbackID})
	return nil
}

func (b *NoopBotAdapter) SetMenuCommands(ctx context.Context, chatID int64, isAdmin bool) error {
	text := "user"
	if isAdmin {
		text = "admin"
	}
	b.record(Outbound{Kind: "commands", ChatID: chatID, Text: text})
	return nil
}

// Sent returns a copy of everything recorded so far.
func (b *NoopBotAdapter) Sent() []Outbound {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Outbound(nil), b.sent...)
}

// Last returns the last recorded call of kind, if any.
func (b *NoopBotAdapter) Last(kind string) (Outbound, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.sent) - 1; i >= 0; i-- {
		if b.sent[i].Kind == kind {
			return b.sent[i], true
		}
	}
	return Outbound{}, false
}

func (b *NoopBotAdapter) Reset() {
	b.mu.Lock()
	b.sent = nil
	b.mu.Unlock()
}
