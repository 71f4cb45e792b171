package router

import (
	"log/slog"

	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/quizbot/core/telegram/helpers"
	"github.com/m3rciful/quizbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions supplies a fallback for uniques the registry does not
// know when the registry has none.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches every button press by its unique. Each callback
// is answered exactly once: handlers may answer with tghelpers.Answer,
// otherwise an empty answer goes out after they return.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		defer func() { _ = tghelpers.Answer(c, "") }()

		key, _ := callbacks.ParseCallbackData(c.Callback())
		name := "callback." + normalizeHandlerName(key)
		if h, ok := reg.GetCallback(key); ok {
			return runHandler(c, name, "", h, slog.String("cb_key", key))
		}

		fallback := reg.CallbackNotFound()
		if fallback == nil {
			fallback = opts.NotFound
		}
		return runHandler(c, name, "ignored", fallback,
			slog.String("cb_key", key),
			slog.String("reason", "not_found"),
		)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
