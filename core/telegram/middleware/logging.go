package middleware

import (
	"log/slog"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/quizbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const receivedKey = "update_logged"

// LoggerMiddleware prepares the per-update log context and emits a sampled
// update.received line. Installed both globally and per route, it logs each
// update once.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if logged, _ := c.Get(receivedKey).(bool); !logged {
			c.Set(receivedKey, true)
			if logger.ShouldSampleDebug() {
				logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", receivedAttrs(c)...)
			}
		}
		return next(c)
	}
}

func receivedAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok")}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}

	upd := c.Update()
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		if key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		}
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
		}
	case upd.Message != nil && upd.Message.Text != "":
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(upd.Message.Text, 256)))
	}
	return attrs
}
