// Package netutil classifies Telegram API failures for retry decisions.
package netutil

import (
	"errors"
	"net"
	"net/url"
	"time"

	tele "gopkg.in/telebot.v4"
)

// maxFloodWait caps how long a single flood-control pause may last.
const maxFloodWait = 30 * time.Second

// ShouldRetry reports whether a failed Telegram call is worth repeating:
// network timeouts, dial failures and flood control (429).
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
		return ShouldRetry(urlErr.Err)
	}

	return false
}

// RetryDelay returns the pause Telegram asked for on flood control, or
// fallback for any other error.
func RetryDelay(err error, fallback time.Duration) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return min(time.Duration(flood.RetryAfter)*time.Second, maxFloodWait)
	}
	return fallback
}
