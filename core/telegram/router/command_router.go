package router

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/m3rciful/quizbot/core/logger"
	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/core/telegram/commands"
	"github.com/m3rciful/quizbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures the admin gate of AdminOnly commands.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per registered command, sorted by name.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for _, key := range slices.Sorted(maps.Keys(cmds)) {
		routes = append(routes, tg.Route{
			Endpoint: key,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(commandHandler(key, cmds[key], opts))),
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "commands"),
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

// commandHandler applies the admin gate and the handler summary. The text
// route reuses it so aliases get the same checks as the command itself.
func commandHandler(key string, def commands.Command, opts CommandRouteOptions) tele.HandlerFunc {
	name := normalizeHandlerName(key)
	h := func(c tele.Context) error {
		return runHandler(c, name, "", def.Handler)
	}
	if def.AdminOnly {
		h = middleware.AdminOnlyMiddleware(middleware.AdminOptions{
			AdminID:  opts.AdminID,
			OnReject: opts.OnAdminReject,
		})(h)
	}
	return h
}
