package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	"github.com/m3rciful/quizbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// RateLimitHooks lets a bot take part in rate limiting. OnLimited may answer
// dropped updates, e.g. to stop a button spinner. Exempt marks updates that
// must never be dropped.
type RateLimitHooks struct {
	OnLimited tele.HandlerFunc
	Exempt    func(tele.Context) bool
}

// DefaultMiddlewares returns the global chain in installation order:
// panic recovery, update logging, tracing, the per-user rate limit (when
// rate_limit.interval_ms is set) and send counters.
func DefaultMiddlewares(cfg *coreconfig.Config, hooks RateLimitHooks) []Middleware {
	chain := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
		{Name: "tracing", Use: middleware.TracingMiddleware},
	}
	if limit, ok := rateLimit(cfg, hooks); ok {
		chain = append(chain, limit)
	}
	return append(chain, Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware})
}

func rateLimit(cfg *coreconfig.Config, hooks RateLimitHooks) (Middleware, bool) {
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return Middleware{}, false
	}
	exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		exclude[strings.ToLower(strings.TrimSpace(kind))] = struct{}{}
	}
	return Middleware{
		Name: "rate_limit",
		Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
			Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
			Exclude:   exclude,
			Exempt:    hooks.Exempt,
			OnLimited: hooks.OnLimited,
		}),
	}, true
}
