package router

import (
	"log/slog"

	"github.com/m3rciful/aviabot/core/logger"
	tg "github.com/m3rciful/aviabot/core/telegram"
	"github.com/m3rciful/aviabot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes prepares command handlers with summaries and admin checks.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		name, h := normalizeHandlerName(cmd), def.Handler
		if def.AdminOnly {
			h = adminOnly(h)
		}
		wrapped := func(c tele.Context) error {
			return handleWithSummary(c, name, func() error { return h(c) })
		}
		routes = append(routes, tg.Route{Endpoint: cmd, Handler: wrapped})
		for _, alias := range def.Aliases {
			routes = append(routes, tg.Route{Endpoint: "/" + normalizeHandlerName(alias), Handler: wrapped})
		}
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}
