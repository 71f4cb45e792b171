package router

import (
	"strings"

	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/core/telegram/commands"
	"github.com/m3rciful/quizbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// TextOptions controls the plain text route.
type TextOptions struct {
	// Commands gates aliased admin commands like CommandRoutes does.
	Commands    CommandRouteOptions
	UnknownText tele.HandlerFunc
}

// TextRoutes handles text telebot did not match itself. Slash-prefixed
// text (aliases, other casing, "/cmd@bot") is resolved against the
// registry, anything else goes to the registry fallback, then UnknownText.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		if reg != nil {
			if key, cmd, ok := lookupCommand(reg, c.Text()); ok {
				return commandHandler(key, cmd, opts.Commands)(c)
			}
			if fb := reg.TextFallback(); fb != nil {
				return runHandler(c, "fallback", "", fb)
			}
		}
		if opts.UnknownText != nil {
			return runHandler(c, "unknown_text", "", opts.UnknownText)
		}
		return runHandler(c, "unknown_text", "ignored", nil)
	}

	return []tg.Route{{
		Endpoint: tele.OnText,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}}
}

// lookupCommand resolves "/Name@bot args" to a registered command.
func lookupCommand(reg *tg.Registry, text string) (string, commands.Command, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", commands.Command{}, false
	}
	name, _, _ := strings.Cut(text, " ")
	name, _, _ = strings.Cut(name, "@")
	key, cmd, ok := reg.LookupCommand(name)
	if !ok || cmd.Handler == nil {
		return "", commands.Command{}, false
	}
	return key, cmd, true
}
