package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher binds the dispatcher used by SendText. nil makes sends
// synchronous again.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// enqueue hands fn to the bound dispatcher. Without one, or when it cannot
// take more work, fn runs inline so the message is not lost.
func enqueue(c tele.Context, action, endpoint string, fn func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return fn()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, endpoint, fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sender.ErrQueueFull), errors.Is(err, sender.ErrQueueClosed):
		logger.Warn(ctx, logger.CompSender, "queue.fallback",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
		return fn()
	default:
		return err
	}
}

// SendText queues plain text for the current chat. Only the first options
// value is used.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	args := make([]any, 0, 1)
	if len(opts) > 0 && opts[0] != nil {
		args = append(args, opts[0])
	}
	return enqueue(c, "send.text", "sendMessage", func() error {
		return c.Send(text, args...)
	})
}

// EditOrSendText replaces the message behind the current callback, or sends
// a new one when there is none. It runs inline so the edit is ordered before
// anything the handler sends next.
func EditOrSendText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	if markup == nil {
		return c.EditOrSend(text)
	}
	return c.EditOrSend(text, markup)
}
