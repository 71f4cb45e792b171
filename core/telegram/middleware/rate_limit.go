package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/quizbot/core/logger"
	tghelpers "github.com/m3rciful/quizbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// pruneThreshold bounds how many users are tracked before idle ones are swept.
const pruneThreshold = 4096

// RateLimitOptions configures RateLimitMiddleware. Exclude holds update
// kinds ("message", "callback", "inline_query", "other") that bypass the limit.
// Exempt, when set, lets individual updates through regardless of kind.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	Exempt    func(tele.Context) bool
	OnLimited tele.HandlerFunc
}

type limiter struct {
	interval time.Duration
	mu       sync.Mutex
	lastSeen map[int64]time.Time
}

// allow records the attempt and reports whether it is spaced far enough
// from the previous accepted one. Rejected attempts do not extend the window.
func (l *limiter) allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.lastSeen[userID]; ok && now.Sub(last) < l.interval {
		return false
	}
	l.lastSeen[userID] = now
	if len(l.lastSeen) > pruneThreshold {
		pruneLastSeen(l.lastSeen, now, l.interval)
	}
	return true
}

// RateLimitMiddleware drops updates arriving less than Interval after the
// previous accepted update of the same user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	lim := &limiter{interval: opts.Interval, lastSeen: make(map[int64]time.Time)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := rateLimitKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if opts.Exempt != nil && opts.Exempt(c) {
				return next(c)
			}
			if lim.allow(user.ID, time.Now()) {
				return next(c)
			}

			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("outcome", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}

func rateLimitKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}

func pruneLastSeen(seen map[int64]time.Time, now time.Time, interval time.Duration) {
	for id, last := range seen {
		if now.Sub(last) >= interval {
			delete(seen, id)
		}
	}
}
