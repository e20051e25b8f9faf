package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/aviabot/core/logger"
	"github.com/m3rciful/aviabot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

// Dispatch runs send on the dispatcher queue owned by chatID, or inline when no dispatcher is wired.
// Full or closed queues degrade to a synchronous send.
func Dispatch(ctx context.Context, chatID int64, action string, send func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return send()
	}
	err := disp.Enqueue(ctx, chatID, action, send)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, logger.CompSender, "queue.fallback",
			slog.String("handler", action),
			slog.String("err", err.Error()),
		)
		return send()
	}
	return err
}

// SendTo delivers text to an arbitrary recipient through the per-chat queue.
func SendTo(ctx context.Context, api tele.API, chatID int64, text string, opts *tele.SendOptions) error {
	chat := &tele.Chat{ID: chatID}
	return Dispatch(ctx, chatID, "send.text", func() error {
		if opts != nil {
			_, err := api.Send(chat, text, opts)
			return err
		}
		_, err := api.Send(chat, text)
		return err
	})
}

// SendText sends raw text (no parse mode) to the current chat.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	chatID, _ := IDs(c)
	return Dispatch(BuildContext(c), chatID, "send.text", func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// Respond answers a callback query so the client stops showing a spinner.
func Respond(c tele.Context, text string) {
	if c.Callback() == nil {
		return
	}
	if err := c.Respond(&tele.CallbackResponse{Text: text}); err != nil {
		logger.Debug(BuildContext(c), logger.CompTG, "callback.respond",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}
