package telegram

import (
	"fmt"
	"time"

	coreconfig "github.com/m3rciful/quizbot/core/config"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPollTimeout = 10 * time.Second

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode         string
	LongPollTimeout time.Duration
	Webhook         coreconfig.WebhookConfig
}

// PollerOptionsFromConfig maps the normalized core config onto PollerOptions.
func PollerOptionsFromConfig(cfg *coreconfig.Config) PollerOptions {
	return PollerOptions{
		RunMode:         cfg.Telegram.RunMode,
		LongPollTimeout: time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second,
		Webhook:         cfg.Webhook,
	}
}

// BuildPoller returns a webhook poller for webhook mode and a long poller otherwise.
func BuildPoller(opts PollerOptions) tele.Poller {
	if opts.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", opts.Webhook.Listen, opts.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
		}
	}
	return &tele.LongPoller{Timeout: opts.longPollTimeout()}
}

func (o PollerOptions) longPollTimeout() time.Duration {
	if o.LongPollTimeout <= 0 {
		return defaultLongPollTimeout
	}
	return o.LongPollTimeout
}
