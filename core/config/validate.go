package config

import (
	"errors"
	"fmt"
	"strings"
)

// Normalize fills defaults and validates every section. All problems are
// reported at once.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	errs := []error{
		cfg.normalizeTelegram(),
		cfg.normalizeRateLimit(),
		cfg.Sender.validate(),
	}
	if strings.TrimSpace(cfg.Telemetry.ServiceName) == "" {
		cfg.Telemetry.ServiceName = defaultServiceName
	}
	return errors.Join(errs...)
}

func (cfg *Config) normalizeTelegram() error {
	var errs []error
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram token is required"))
	}
	if cfg.Telegram.LongPollTimeoutSeconds < 0 {
		errs = append(errs, errors.New("telegram.longpoll_timeout_seconds must be >= 0"))
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	switch mode {
	case "", "polling", RunModeLongpoll:
		cfg.Telegram.RunMode = RunModeLongpoll
	case RunModeWebhook:
		cfg.Telegram.RunMode = RunModeWebhook
		errs = append(errs, cfg.Webhook.validate())
	default:
		errs = append(errs, fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode))
	}
	return errors.Join(errs...)
}

func (w WebhookConfig) validate() error {
	var errs []error
	if strings.TrimSpace(w.URL) == "" {
		errs = append(errs, errors.New("webhook.url is required in webhook mode"))
	}
	if strings.TrimSpace(w.Listen) == "" {
		errs = append(errs, errors.New("webhook.listen is required in webhook mode"))
	}
	if w.Port <= 0 || w.Port > 65535 {
		errs = append(errs, fmt.Errorf("webhook.port %d is out of range", w.Port))
	}
	return errors.Join(errs...)
}

func (cfg *Config) normalizeRateLimit() error {
	if cfg.RateLimit.IntervalMS < 0 {
		return errors.New("rate_limit.interval_ms must be >= 0")
	}
	kinds := cfg.RateLimit.ExcludeUpdates[:0]
	for _, v := range cfg.RateLimit.ExcludeUpdates {
		switch kind := strings.ToLower(strings.TrimSpace(v)); kind {
		case "":
		case UpdateCallback, UpdateMessage:
			kinds = append(kinds, kind)
		default:
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
	}
	cfg.RateLimit.ExcludeUpdates = kinds
	return nil
}

func (s SenderConfig) validate() error {
	var errs []error
	for name, v := range map[string]int{
		"queue_size":       s.QueueSize,
		"workers":          s.Workers,
		"max_retries":      s.MaxRetries,
		"retry_backoff_ms": s.RetryBackoffMS,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("sender.%s must be >= 0", name))
		}
	}
	return errors.Join(errs...)
}
