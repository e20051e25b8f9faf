// Package bot binds the conversation machine to telebot: commands, inline
// buttons, free text and fallbacks.
package bot

import (
	"context"
	"fmt"
	"strings"

	tg "github.com/m3rciful/aviabot/core/telegram"
	"github.com/m3rciful/aviabot/core/telegram/callbacks"
	"github.com/m3rciful/aviabot/core/telegram/commands"
	"github.com/m3rciful/aviabot/core/telegram/helpers"
	"github.com/m3rciful/aviabot/core/telegram/middleware"
	"github.com/m3rciful/aviabot/core/telegram/router"
	"github.com/m3rciful/aviabot/core/telegram/sender"
	"github.com/m3rciful/aviabot/core/telegram/ui"
	"github.com/m3rciful/aviabot/internal/airlines"
	"github.com/m3rciful/aviabot/internal/conversation"
	"github.com/m3rciful/aviabot/internal/i18n"

	tele "gopkg.in/telebot.v4"
)

// Machine is the part of conversation.Machine the handlers drive.
type Machine interface {
	Start(ctx context.Context, p conversation.Peer) error
	Cancel(ctx context.Context, p conversation.Peer) error
	Language(ctx context.Context, p conversation.Peer) error
	HandleText(ctx context.Context, p conversation.Peer, text string) error
	HandleChoice(ctx context.Context, p conversation.Peer, c conversation.Choice) error
	PreferredLanguage(ctx context.Context, userID int64) string
	SessionCount(ctx context.Context) (int, error)
}

// Options wires Handlers.
type Options struct {
	Machine   Machine
	Texts     *i18n.Catalog
	Directory *airlines.Directory
	Stats     *middleware.Stats
	AdminID   int64
}

// Handlers owns the bot's routes.
type Handlers struct {
	machine    Machine
	texts      *i18n.Catalog
	directory  *airlines.Directory
	stats      *middleware.Stats
	adminID    int64
	dispatcher *sender.Dispatcher
}

// New builds Handlers.
func New(opts Options) *Handlers {
	return &Handlers{
		machine:   opts.Machine,
		texts:     opts.Texts,
		directory: opts.Directory,
		stats:     opts.Stats,
		adminID:   opts.AdminID,
	}
}

// SetDispatcher exposes sender counters to /stats and the status endpoint.
func (h *Handlers) SetDispatcher(d *sender.Dispatcher) { h.dispatcher = d }

var choiceKinds = []conversation.ChoiceKind{
	conversation.KindLanguage,
	conversation.KindAction,
	conversation.KindCandidate,
	conversation.KindDateMode,
	conversation.KindNav,
}

// Registry registers commands and callback keys.
func (h *Handlers) Registry() (*tg.Registry, error) {
	reg := tg.NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: h.onStart, Description: "New flight search"})
	reg.RegisterCommand("/cancel", commands.Command{Handler: h.onCancel, Description: "Cancel the current search"})
	reg.RegisterCommand("/language", commands.Command{Handler: h.onLanguage, Description: "Change language", Aliases: []string{"lang"}})
	reg.RegisterCommand("/help", commands.Command{Handler: h.onHelp, Description: "How to use the bot"})
	reg.RegisterCommand("/stats", commands.Command{Handler: h.onStats, Description: "Runtime counters", AdminOnly: true})

	for _, kind := range choiceKinds {
		if err := reg.RegisterCallback(string(kind), h.onChoice(kind)); err != nil {
			return nil, fmt.Errorf("register callback %s: %w", kind, err)
		}
	}
	reg.SetCallbackNotFound(h.UnknownCallback())
	return reg, nil
}

// Routes returns every route for reg.
func (h *Handlers) Routes(reg *tg.Registry) []tg.Route {
	var fb ui.FallbackProvider = h
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID:       h.adminID,
		OnAdminReject: h.reply("admin_only"),
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{NotFound: fb.UnknownCallback()}))
	return append(routes, router.TextRoutes(fsm{h}, reg, router.TextOptions{
		UnknownText:     fb.UnknownText(),
		UnknownDocument: fb.UnknownDocument(),
	})...)
}

func peer(c tele.Context) conversation.Peer {
	chatID, userID := helpers.IDs(c)
	if chatID == 0 {
		chatID = userID
	}
	return conversation.Peer{UserID: userID, ChatID: chatID}
}

func (h *Handlers) lang(c tele.Context) string {
	_, userID := helpers.IDs(c)
	return h.machine.PreferredLanguage(helpers.BuildContext(c), userID)
}

func (h *Handlers) onStart(c tele.Context) error {
	return h.machine.Start(helpers.BuildContext(c), peer(c))
}

func (h *Handlers) onCancel(c tele.Context) error {
	return h.machine.Cancel(helpers.BuildContext(c), peer(c))
}

func (h *Handlers) onLanguage(c tele.Context) error {
	return h.machine.Language(helpers.BuildContext(c), peer(c))
}

func (h *Handlers) onHelp(c tele.Context) error {
	return helpers.SendText(c, h.texts.Text(h.lang(c), "help"))
}

func (h *Handlers) onChoice(kind conversation.ChoiceKind) tele.HandlerFunc {
	return func(c tele.Context) error {
		helpers.Respond(c, "")
		choice := conversation.Choice{Kind: kind, Value: strings.TrimSpace(callbacks.CallbackPayload(c))}
		return h.machine.HandleChoice(helpers.BuildContext(c), peer(c), choice)
	}
}

// reply sends the localized text for key, answering a pending callback first.
func (h *Handlers) reply(key string) tele.HandlerFunc {
	return func(c tele.Context) error {
		text := h.texts.Text(h.lang(c), key)
		if c.Callback() != nil {
			helpers.Respond(c, text)
			return nil
		}
		return helpers.SendText(c, text)
	}
}

// UnknownText implements ui.FallbackProvider.
func (h *Handlers) UnknownText() tele.HandlerFunc { return h.reply("unsupported_input") }

// UnknownDocument implements ui.FallbackProvider.
func (h *Handlers) UnknownDocument() tele.HandlerFunc { return h.reply("unsupported_input") }

// UnknownCallback implements ui.FallbackProvider.
func (h *Handlers) UnknownCallback() tele.HandlerFunc { return h.reply("invalid_choice") }

// RateLimited implements ui.FallbackProvider.
func (h *Handlers) RateLimited() tele.HandlerFunc { return h.reply("rate_limited") }

// fsm hands free text to the machine. Every user counts as in progress:
// text without a session starts one.
type fsm struct{ h *Handlers }

func (f fsm) InProgress(int64) bool { return true }

func (f fsm) ManagerHandler(c tele.Context) error {
	return f.h.machine.HandleText(helpers.BuildContext(c), peer(c), c.Text())
}
