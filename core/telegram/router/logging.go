package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/quizbot/core/logger"
	tghelpers "github.com/m3rciful/quizbot/core/telegram/helpers"
	"github.com/m3rciful/quizbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// runHandler tags the update with the handler name, runs fn and logs one
// handler.handled line. An empty outcome is derived from the error.
func runHandler(c tele.Context, name, outcome string, fn tele.HandlerFunc, extras ...slog.Attr) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, name)
	var err error
	if fn != nil {
		err = fn(c)
	}
	logHandled(ctx, c, name, outcome, time.Since(start), err, extras...)
	return err
}

func logHandled(ctx context.Context, c tele.Context, name, outcome string, took time.Duration, err error, extras ...slog.Attr) {
	status := "ok"
	if err != nil {
		status = "fail"
	}
	if outcome == "" {
		outcome = status
	}
	msgs, kb := middleware.GetCounters(c)

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", name),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", logger.RoundMS(took).Milliseconds()),
	}
	if c.Callback() != nil {
		attrs = append(attrs, slog.Int("answers", middleware.Answers(c)))
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", append(attrs, extras...)...)
}

// normalizeHandlerName turns "/Start" or "my action" into log-friendly names.
func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// deriveErrorCode picks a stable upper-case code for err_code.
func deriveErrorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	var apiErr *tele.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	case errors.Is(err, context.Canceled):
		return "CANCELED"
	case errors.As(err, &apiErr):
		return fmt.Sprintf("TG_API_%d", apiErr.Code)
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
