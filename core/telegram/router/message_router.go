package router

import (
	tg "github.com/m3rciful/aviabot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// FSM receives free text for users with an active conversation.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds handlers for text and document routing.
// Text is tried as a command alias first, then handed to the FSM, then to fallbacks.
func TextRoutes(fsmMgr FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	inProgress := func(c tele.Context) bool {
		return fsmMgr != nil && c.Sender() != nil && fsmMgr.InProgress(c.Sender().ID)
	}

	handler := func(c tele.Context) error {
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handleWithSummary(c, normalizeHandlerName(key), func() error {
					return cmd.Handler(c)
				})
			}
		}

		if inProgress(c) {
			return handleWithSummary(c, "fsm", func() error {
				return fsmMgr.ManagerHandler(c)
			})
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", func() error { return fb(c) })
			}
		}
		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", func() error { return opts.UnknownText(c) })
		}
		return nil
	}

	docHandler := func(c tele.Context) error {
		if opts.UnknownDocument != nil {
			return handleWithSummary(c, "unexpected_document", func() error {
				return opts.UnknownDocument(c)
			})
		}
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: handler},
		{Endpoint: tele.OnDocument, Handler: docHandler},
		{Endpoint: tele.OnPhoto, Handler: docHandler},
	}
}
