package telegram

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/telegram/netutil"
)

const (
	dialTimeout       = 5 * time.Second
	tlsHandshake      = 5 * time.Second
	idleConnTimeout   = 30 * time.Second
	keepAliveInterval = 30 * time.Second
	// responseMargin is added on top of the long poll window, during which
	// getUpdates legitimately sends no headers.
	responseMargin = 10 * time.Second
	retryAttempts  = 3
	retryBackoff   = 2 * time.Second
)

// BuildHTTPClient returns an HTTP client for Telegram API calls whose
// timeouts outlast a getUpdates long poll of the given length.
func BuildHTTPClient(longPoll time.Duration) *http.Client {
	if longPoll <= 0 {
		longPoll = defaultLongPollTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshake,
		ResponseHeaderTimeout: longPoll + responseMargin,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout: longPoll + 2*responseMargin,
		Transport: &retryTransport{
			base:       transport,
			maxRetries: retryAttempts,
			backoff:    retryBackoff,
		},
	}
}

// retryTransport repeats requests that failed before reaching Telegram,
// such as refused dials or DNS timeouts. HTTP error responses pass through.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	ctx := req.Context()
	for attempt := 1; ; attempt++ {
		resp, err := base.RoundTrip(req)
		if err == nil || attempt > t.maxRetries || !netutil.ShouldRetry(err) {
			return resp, err
		}
		next, rewindErr := rewind(req)
		if rewindErr != nil {
			return nil, err
		}

		delay := t.backoff * time.Duration(attempt)
		logger.TG.LogAttrs(ctx, slog.LevelDebug, "http retry",
			slog.String("event", "http.retry"),
			slog.String("path", redactPath(req.URL.Path)),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("err", unwrapURLError(err).Error()),
		)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		req = next
	}
}

// rewind clones req with a fresh body. Requests whose body cannot be
// replayed are not retried.
func rewind(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req.Clone(req.Context()), nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, nil
}

// unwrapURLError drops the *url.Error wrapper, whose message embeds the
// request URL and with it the bot token.
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}

// redactPath keeps only the API method of "/bot<token>/<method>".
func redactPath(p string) string {
	return path.Base(p)
}
