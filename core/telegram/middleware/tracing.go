package middleware

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/quizbot/core/telegram/helpers"
	"github.com/m3rciful/quizbot/core/telemetry"

	tele "gopkg.in/telebot.v4"
)

// TracingMiddleware opens one span per update and stores the span context
// for downstream logs. With no tracer provider configured the span is a no-op.
func TracingMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		// already traced on an outer branch
		if trace.SpanContextFromContext(tghelpers.BuildContext(c)).IsValid() {
			return next(c)
		}

		upd := c.Update()
		kind, name := updateKind(upd)
		ctx, span := telemetry.Tracer().Start(tghelpers.BuildContext(c), "tg."+kind,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.Int("tg.update_id", upd.ID),
				attribute.String("tg.update_kind", kind),
			),
		)
		defer span.End()
		if name != "" {
			span.SetAttributes(attribute.String("tg.route", name))
		}
		if user := c.Sender(); user != nil {
			span.SetAttributes(attribute.Int64("tg.user_id", user.ID))
		}
		tghelpers.StoreContext(c, ctx)

		err := next(c)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, logger.SanitizeLimit(err.Error(), 128))
		}
		return err
	}
}

func updateKind(upd tele.Update) (string, string) {
	switch {
	case upd.Callback != nil:
		key, _ := callbacks.ParseCallbackData(upd.Callback)
		return "callback", key
	case upd.Message != nil:
		if text := upd.Message.Text; strings.HasPrefix(text, "/") {
			cmd, _, _ := strings.Cut(text, " ")
			cmd, _, _ = strings.Cut(cmd, "@")
			return "command", cmd
		}
		return "message", ""
	}
	return "other", ""
}
