package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"streamer-live-bot/internal/domain"
	"streamer-live-bot/internal/domain/model"
	"streamer-live-bot/internal/domain/ports/adapter"
	"streamer-live-bot/internal/infra/logging"
	"streamer-live-bot/internal/infra/metrics"
	"streamer-live-bot/internal/usecase"

	"github.com/rs/zerolog"
)

const (
	ParseModeMarkdown = "Markdown"

	// Callback data understood by the Telegram router.
	CbMenu           = "cmd:menu"
	CbAdd            = "cmd:add"
	CbList           = "cmd:list"
	CbToggle         = "cmd:toggle"
	CbDeleteAll      = "cmd:delete_all"
	CbHelp           = "cmd:help"
	CbConfirmDelete  = "delete_all:confirm"
	CbCancelDelete   = "delete_all:cancel"
	CbRemovePrefix   = "rm:"
	CbListPagePrefix = "list:"
)

// Reply is a transport-neutral answer to one user event.
type Reply struct {
	Text      string
	ParseMode string
	Markup    *adapter.ReplyMarkup
	// PhotoURL, when set, sends Text as the caption of this photo.
	PhotoURL string
	// Edit asks the transport to replace the message the event came from.
	Edit bool
}

type FacadeOptions struct {
	WelcomePhotoURL string
	StreamURLBase   string
	// SiteURL backs the "visit" button of the main menu; empty hides it.
	SiteURL string
}

// BotFacade turns user events into replies. Known domain failures become a
// reply; anything else is returned for the transport's generic error path.
type BotFacade struct {
	sessions SessionUseCaseIface
	watches  WatchUseCaseIface
	tr       Translator
	opts     FacadeOptions
	log      *zerolog.Logger
}

func NewBotFacade(sessions SessionUseCaseIface, watches WatchUseCaseIface, tr Translator, opts FacadeOptions, logger *zerolog.Logger) *BotFacade {
	return &BotFacade{sessions: sessions, watches: watches, tr: tr, opts: opts, log: logger}
}

func (b *BotFacade) md(text string) *Reply {
	return &Reply{Text: text, ParseMode: ParseModeMarkdown}
}

// Start registers the user and shows the main menu.
func (b *BotFacade) Start(ctx context.Context, tgID, chatID int64) (*Reply, error) {
	sess, created, err := b.sessions.Start(ctx, tgID, chatID)
	if err != nil {
		return b.fail(ctx, "start", err)
	}
	if created {
		metrics.IncUsersRegistered()
		b.log.Info().Int64("tg_id", tgID).Msg("new user registered")
	}
	r := b.md(b.tr.T("welcome"))
	r.Markup = b.menuMarkup(sess.NotificationsEnabled)
	r.PhotoURL = b.opts.WelcomePhotoURL
	return r, nil
}

// Menu re-renders the main menu in place.
func (b *BotFacade) Menu(ctx context.Context, tgID, chatID int64) (*Reply, error) {
	r, err := b.Start(ctx, tgID, chatID)
	if r != nil {
		r.PhotoURL = ""
		r.Edit = true
	}
	return r, err
}

func (b *BotFacade) menuMarkup(notificationsOn bool) *adapter.ReplyMarkup {
	toggle := b.tr.T("btn_toggle_off")
	if notificationsOn {
		toggle = b.tr.T("btn_toggle_on")
	}
	rows := [][]adapter.Button{
		{{Text: b.tr.T("btn_add"), Data: CbAdd}, {Text: b.tr.T("btn_list"), Data: CbList}},
		{{Text: b.tr.T("btn_delete_all"), Data: CbDeleteAll}, {Text: b.tr.T("btn_help"), Data: CbHelp}},
		{{Text: toggle, Data: CbToggle}},
	}
	if b.opts.SiteURL != "" {
		rows = append(rows, []adapter.Button{{Text: b.tr.T("btn_visit"), URL: b.opts.SiteURL}})
	}
	return &adapter.ReplyMarkup{IsInline: true, Buttons: rows}
}

func (b *BotFacade) Help(context.Context) *Reply {
	r := b.md(b.tr.T("help"))
	r.Markup = &adapter.ReplyMarkup{IsInline: true, Buttons: [][]adapter.Button{{{Text: b.tr.T("btn_menu"), Data: CbMenu}}}}
	return r
}

// AddPrompt asks for a handle; the next plain message is taken as one.
func (b *BotFacade) AddPrompt(ctx context.Context, tgID int64) (*Reply, error) {
	if err := b.watches.AwaitHandle(ctx, tgID); err != nil {
		return nil, err
	}
	return b.md(b.tr.T("add_prompt")), nil
}

// Add watches raw for the user. It serves /add, the add prompt and free text.
func (b *BotFacade) Add(ctx context.Context, tgID, chatID int64, raw string) (*Reply, error) {
	if strings.TrimSpace(raw) == "" {
		return &Reply{Text: b.tr.T("add_usage")}, nil
	}
	res, err := b.watches.AddStreamer(ctx, tgID, chatID, raw)
	if err != nil {
		metrics.IncWatchOperation("add", resultOf(err))
		var ge *domain.GatewayError
		if errors.As(err, &ge) {
			logging.With(ctx, b.log).Warn().Err(err).Str("kind", string(ge.Kind)).Msg("workflow create failed")
			return b.md(b.tr.T("add_failed", escapeMD(model.NormalizeHandle(raw)), escapeMD(userMessage(ge)))), nil
		}
		return b.fail(ctx, "add", err)
	}
	metrics.IncWatchOperation("add", "ok")
	link := usecase.StreamURL(b.opts.StreamURLBase, res.Handle)
	return b.md(b.tr.T("add_success", escapeMD(res.Handle), codeMD(res.WorkflowID), escapeMD(link))), nil
}

// FreeText routes a plain message. After an add prompt the text goes to Add
// as is; otherwise it must look like a handle first.
func (b *BotFacade) FreeText(ctx context.Context, tgID, chatID int64, text string) (*Reply, error) {
	if b.watches.TakeAwaitingHandle(ctx, tgID) {
		return b.Add(ctx, tgID, chatID, strings.TrimSpace(text))
	}
	handle, ok := model.ClassifyFreeText(text)
	if !ok {
		return b.md(b.tr.T("freetext_hint")), nil
	}
	return b.Add(ctx, tgID, chatID, handle)
}

func (b *BotFacade) Remove(ctx context.Context, tgID int64, raw string) (*Reply, error) {
	if strings.TrimSpace(raw) == "" {
		return &Reply{Text: b.tr.T("remove_usage")}, nil
	}
	res, err := b.watches.RemoveStreamer(ctx, tgID, raw)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.IncWatchOperation("remove", "not_found")
		return b.md(b.tr.T("remove_not_found", escapeMD(model.NormalizeHandle(raw)))), nil
	}
	if err != nil {
		metrics.IncWatchOperation("remove", resultOf(err))
		return b.fail(ctx, "remove", err)
	}
	metrics.IncWatchOperation("remove", "ok")
	return b.md(b.withRemoteWarning(b.tr.T("remove_success", escapeMD(res.Handle)), res)), nil
}

func (b *BotFacade) DeleteWorkflow(ctx context.Context, tgID int64, workflowID string) (*Reply, error) {
	workflowID = strings.TrimSpace(workflowID)
	if workflowID == "" {
		return &Reply{Text: b.tr.T("delete_usage")}, nil
	}
	res, err := b.watches.DeleteWorkflow(ctx, tgID, workflowID)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.IncWatchOperation("delete", "not_found")
		return b.md(b.tr.T("delete_not_found", codeMD(workflowID))), nil
	}
	if err != nil {
		metrics.IncWatchOperation("delete", resultOf(err))
		return b.fail(ctx, "delete", err)
	}
	metrics.IncWatchOperation("delete", "ok")
	return b.md(b.withRemoteWarning(b.tr.T("delete_success", codeMD(workflowID), escapeMD(res.Handle)), res)), nil
}

func (b *BotFacade) withRemoteWarning(text string, res *usecase.RemoveResult) string {
	if res.RemoteErr == nil {
		return text
	}
	return text + "\n\n" + b.tr.T("remote_delete_warning", codeMD(res.WorkflowID), escapeMD(userMessage(res.RemoteErr)))
}

func (b *BotFacade) RequestDeleteAll(ctx context.Context, tgID int64) (*Reply, error) {
	n, err := b.watches.RequestDeleteAll(ctx, tgID)
	if err != nil {
		return b.fail(ctx, "delete_all", err)
	}
	if n == 0 {
		return &Reply{Text: b.tr.T("delete_all_empty")}, nil
	}
	r := b.md(b.tr.T("delete_all_confirm", n))
	r.Markup = &adapter.ReplyMarkup{IsInline: true, Buttons: [][]adapter.Button{{
		{Text: b.tr.T("btn_confirm_delete_all"), Data: CbConfirmDelete},
		{Text: b.tr.T("btn_cancel"), Data: CbCancelDelete},
	}}}
	return r, nil
}

func (b *BotFacade) ConfirmDeleteAll(ctx context.Context, tgID int64) (*Reply, error) {
	res, err := b.watches.ConfirmDeleteAll(ctx, tgID)
	if errors.Is(err, domain.ErrConfirmationExpired) {
		return &Reply{Text: b.tr.T("delete_all_expired"), Edit: true}, nil
	}
	if err != nil {
		metrics.IncWatchOperation("delete_all", resultOf(err))
		return b.fail(ctx, "delete_all", err)
	}
	metrics.IncWatchOperation("delete_all", "ok")
	text := b.tr.T("delete_all_done", res.Removed)
	if len(res.RemoteFailed) > 0 {
		text += "\n\n" + b.tr.T("delete_all_partial", len(res.RemoteFailed), escapeMD(strings.Join(res.RemoteFailed, ", ")))
	}
	return &Reply{Text: text, Edit: true}, nil
}

func (b *BotFacade) CancelDeleteAll(ctx context.Context, tgID int64) (*Reply, error) {
	if err := b.watches.CancelDeleteAll(ctx, tgID); err != nil {
		return nil, err
	}
	return &Reply{Text: b.tr.T("delete_all_cancelled"), Edit: true}, nil
}

func (b *BotFacade) ToggleNotifications(ctx context.Context, tgID, chatID int64) (*Reply, error) {
	on, err := b.sessions.ToggleNotifications(ctx, tgID, chatID)
	if err != nil {
		return b.fail(ctx, "toggle", err)
	}
	if on {
		return b.md(b.tr.T("notifications_on")), nil
	}
	return b.md(b.tr.T("notifications_off")), nil
}

// List renders one page of the watchlist. page is zero based.
func (b *BotFacade) List(ctx context.Context, tgID int64, page int) (*Reply, error) {
	p, err := b.watches.ListPage(ctx, tgID, page)
	if err != nil {
		return b.fail(ctx, "list", err)
	}
	if p.Total == 0 {
		return &Reply{Text: b.tr.T("list_empty")}, nil
	}

	var sb strings.Builder
	sb.WriteString(b.tr.T("list_header", p.Total, p.Page+1, p.TotalPages))
	sb.WriteString("\n\n")
	rows := make([][]adapter.Button, 0, len(p.Items)/2+2)
	var row []adapter.Button
	for i, it := range p.Items {
		icon := "🔴"
		if it.Live() {
			icon = "🟢"
		}
		id := it.WorkflowID
		if id == "" {
			id = "-"
		}
		sb.WriteString(b.tr.T("list_item", p.Page*usecase.PageSize+i+1, icon, escapeMD(it.Handle), codeMD(id), it.CreatedAt.UTC().Format(time.DateOnly)))
		if it.LastNotifiedAt != nil {
			sb.WriteString("\n")
			sb.WriteString(b.tr.T("list_item_notified", it.LastNotifiedAt.UTC().Format("2006-01-02 15:04 UTC")))
		}
		sb.WriteString("\n\n")

		row = append(row, adapter.Button{Text: b.tr.T("btn_remove", it.Handle), Data: CbRemovePrefix + it.Handle})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if p.Stale {
		sb.WriteString(b.tr.T("list_stale"))
		sb.WriteString("\n")
	}
	sb.WriteString(b.tr.T("list_footer"))

	var nav []adapter.Button
	if p.HasPrev {
		nav = append(nav, adapter.Button{Text: b.tr.T("btn_prev"), Data: fmt.Sprintf("%s%d", CbListPagePrefix, p.Page-1)})
	}
	if p.HasNext {
		nav = append(nav, adapter.Button{Text: b.tr.T("btn_next"), Data: fmt.Sprintf("%s%d", CbListPagePrefix, p.Page+1)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []adapter.Button{{Text: b.tr.T("btn_menu"), Data: CbMenu}})

	r := b.md(sb.String())
	r.Markup = &adapter.ReplyMarkup{IsInline: true, Buttons: rows}
	return r, nil
}

// Stats is the operator summary behind the admin-only /stats command.
func (b *BotFacade) Stats(ctx context.Context) (*Reply, error) {
	n, err := b.sessions.Count(ctx)
	if err != nil {
		return b.fail(ctx, "stats", err)
	}
	return &Reply{Text: b.tr.T("stats", n)}, nil
}

func (b *BotFacade) Unauthorized() *Reply {
	return &Reply{Text: b.tr.T("err_unauthorized")}
}

func (b *BotFacade) UnknownCommand() *Reply {
	return &Reply{Text: b.tr.T("err_unknown_command")}
}

func (b *BotFacade) RateLimited() *Reply {
	return &Reply{Text: b.tr.T("err_rate_limited")}
}

// Unexpected is the reply for errors the facade did not map.
func (b *BotFacade) Unexpected() *Reply {
	return &Reply{Text: b.tr.T("err_unexpected")}
}

// fail maps known domain errors to a reply. Unknown errors are returned.
func (b *BotFacade) fail(ctx context.Context, op string, err error) (*Reply, error) {
	var (
		ve  *domain.ValidationError
		de  *domain.DuplicateError
		ge  *domain.GatewayError
		se  *domain.StorageError
		log = logging.With(ctx, b.log).With().Str("op", op).Logger()
	)
	switch {
	case errors.As(err, &ve):
		return &Reply{Text: "❌ " + ve.Reason}, nil
	case errors.As(err, &de):
		return b.md(b.tr.T("add_already", escapeMD(de.Handle))), nil
	case errors.As(err, &ge):
		log.Warn().Err(err).Str("kind", string(ge.Kind)).Int("status", ge.Status).Msg("gateway call failed")
		return &Reply{Text: "❌ " + userMessage(ge)}, nil
	case errors.As(err, &se):
		log.Error().Err(err).Msg("storage failure")
		return &Reply{Text: b.tr.T("err_storage")}, nil
	case errors.Is(err, domain.ErrLockBusy):
		return &Reply{Text: b.tr.T("err_busy")}, nil
	}
	return nil, err
}

func userMessage(err error) string {
	var ge *domain.GatewayError
	if errors.As(err, &ge) && ge.Message != "" {
		return ge.Message
	}
	return err.Error()
}

func resultOf(err error) string {
	var (
		ve *domain.ValidationError
		de *domain.DuplicateError
		ge *domain.GatewayError
		se *domain.StorageError
	)
	switch {
	case errors.As(err, &ve):
		return "invalid"
	case errors.As(err, &de):
		return "duplicate"
	case errors.As(err, &ge):
		return "gateway_" + string(ge.Kind)
	case errors.As(err, &se):
		return "storage"
	case errors.Is(err, domain.ErrLockBusy):
		return "busy"
	}
	return "error"
}

var mdEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escapeMD escapes user text for the legacy Markdown parse mode.
func escapeMD(s string) string { return mdEscaper.Replace(s) }

// codeMD prepares s for a legacy Markdown code span. Escapes are shown
// literally there and only a backtick ends the span.
func codeMD(s string) string { return strings.ReplaceAll(s, "`", "'") }
