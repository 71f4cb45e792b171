package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const countersKey = "tg_counters"

// counters tracks outbound traffic for one update. Async sends may finish
// after the handler returns, so fields are atomic.
type counters struct {
	messages atomic.Int32
	keyboard atomic.Bool
	answers  atomic.Int32
}

// metricsContext wraps tele.Context to count sent messages, keyboards and callback answers.
type metricsContext struct {
	tele.Context
	c *counters
}

func (m metricsContext) sent(opts []any) {
	m.c.messages.Add(1)
	if hasKeyboard(opts) {
		m.c.keyboard.Store(true)
	}
}

func hasKeyboard(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (m metricsContext) Send(what any, opts ...any) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.sent(opts)
	}
	return err
}

func (m metricsContext) Reply(what any, opts ...any) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.sent(opts)
	}
	return err
}

// Edit counts as a response too.
func (m metricsContext) Edit(what any, opts ...any) error {
	err := m.Context.Edit(what, opts...)
	if err == nil {
		m.sent(opts)
	}
	return err
}

func (m metricsContext) EditOrSend(what any, opts ...any) error {
	err := m.Context.EditOrSend(what, opts...)
	if err == nil {
		m.sent(opts)
	}
	return err
}

func (m metricsContext) EditOrReply(what any, opts ...any) error {
	err := m.Context.EditOrReply(what, opts...)
	if err == nil {
		m.sent(opts)
	}
	return err
}

func (m metricsContext) Respond(resp ...*tele.CallbackResponse) error {
	err := m.Context.Respond(resp...)
	if err == nil {
		m.c.answers.Add(1)
	}
	return err
}

// MessageMetricsMiddleware instruments the context so handler summaries can
// report how many messages an update produced.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, ok := c.Get(countersKey).(*counters); ok {
			return next(c)
		}
		cnt := &counters{}
		c.Set(countersKey, cnt)
		return next(metricsContext{Context: c, c: cnt})
	}
}

// GetCounters reads the message count and keyboard flag for the current update.
func GetCounters(c tele.Context) (int, bool) {
	cnt, ok := c.Get(countersKey).(*counters)
	if !ok {
		return 0, false
	}
	return int(cnt.messages.Load()), cnt.keyboard.Load()
}

// Answers reports how many callback answers were sent for the current update.
func Answers(c tele.Context) int {
	cnt, ok := c.Get(countersKey).(*counters)
	if !ok {
		return 0
	}
	return int(cnt.answers.Load())
}
