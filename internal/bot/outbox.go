package bot

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/m3rciful/aviabot/core/telegram/helpers"
	"github.com/m3rciful/aviabot/core/telegram/keyboard"
	"github.com/m3rciful/aviabot/internal/conversation"

	tele "gopkg.in/telebot.v4"
)

var errNotAttached = errors.New("bot: outbox used before Attach")

// Outbox sends conversation replies through the per-chat sender queue.
type Outbox struct {
	api atomic.Pointer[tele.API]
}

// NewOutbox returns an Outbox; call Attach before the first update.
func NewOutbox() *Outbox { return &Outbox{} }

// Attach sets the Bot API used for sending.
func (o *Outbox) Attach(api tele.API) {
	o.api.Store(&api)
}

// Send implements conversation.Outbox.
func (o *Outbox) Send(ctx context.Context, chatID int64, r conversation.Reply) error {
	api := o.api.Load()
	if api == nil {
		return errNotAttached
	}
	opts := &tele.SendOptions{DisableWebPagePreview: true}
	if markup := Markup(r.Buttons); markup != nil {
		opts.ReplyMarkup = markup
	}
	return helpers.SendTo(ctx, *api, chatID, r.Text, opts)
}

// Markup converts reply buttons into an inline keyboard; nil when there are none.
func Markup(rows [][]conversation.Button) *tele.ReplyMarkup {
	converted := make([][]keyboard.InlineBtn, 0, len(rows))
	for _, row := range rows {
		btns := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			btns = append(btns, keyboard.InlineBtn{
				Text:   b.Text,
				Unique: string(b.Choice.Kind),
				Data:   b.Choice.Value,
			})
		}
		converted = append(converted, btns)
	}
	return keyboard.InlineButtonsRows(converted...)
}
