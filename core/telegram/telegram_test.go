package telegram

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	"github.com/m3rciful/quizbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func TestBuildPoller(t *testing.T) {
	cfg := &coreconfig.Config{
		Telegram: coreconfig.TelegramConfig{RunMode: coreconfig.RunModeWebhook},
		Webhook:  coreconfig.WebhookConfig{Listen: "0.0.0.0", Port: 8443, URL: "https://example.org/hook"},
	}
	wh, ok := BuildPoller(PollerOptionsFromConfig(cfg)).(*tele.Webhook)
	if !ok {
		t.Fatal("webhook mode did not build a webhook poller")
	}
	if wh.Listen != "0.0.0.0:8443" || wh.Endpoint.PublicURL != "https://example.org/hook" {
		t.Fatalf("webhook = %+v", wh)
	}

	cfg.Telegram = coreconfig.TelegramConfig{RunMode: coreconfig.RunModeLongpoll}
	lp, ok := BuildPoller(PollerOptionsFromConfig(cfg)).(*tele.LongPoller)
	if !ok || lp.Timeout != defaultLongPollTimeout {
		t.Fatalf("long poller = %+v", lp)
	}
}

func TestHTTPClientOutlastsLongPoll(t *testing.T) {
	c := BuildHTTPClient(50 * time.Second)
	if c.Timeout <= 50*time.Second {
		t.Fatalf("client timeout %v does not cover the poll", c.Timeout)
	}
	rt := c.Transport.(*retryTransport)
	if hdr := rt.base.(*http.Transport).ResponseHeaderTimeout; hdr <= 50*time.Second {
		t.Fatalf("header timeout %v does not cover the poll", hdr)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestRetryTransport(t *testing.T) {
	dialErr := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	calls := 0
	rt := &retryTransport{
		maxRetries: 2,
		base: roundTripFunc(func(*http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return nil, dialErr
			}
			return &http.Response{StatusCode: http.StatusOK}, nil
		}),
	}
	req, _ := http.NewRequest(http.MethodPost, "https://api.telegram.org/bot1:x/getMe", strings.NewReader("{}"))
	resp, err := rt.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("round trip = %v, %v", resp, err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}

	calls = 0
	rt.base = roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls++
		return nil, errors.New("permanent")
	})
	if _, err := rt.RoundTrip(req); err == nil || calls != 1 {
		t.Fatalf("permanent error: err = %v, calls = %d", err, calls)
	}
}

func TestRedactPath(t *testing.T) {
	if got := redactPath("/bot123:secret/sendMessage"); got != "sendMessage" {
		t.Fatalf("redactPath = %q", got)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	noop := func(tele.Context) error { return nil }
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start"})
	reg.RegisterCommand("/active", commands.Command{Handler: noop, Description: "Active", AdminOnly: true, Hidden: true})
	reg.RegisterCommand("stats", commands.Command{Handler: noop, Description: "no slash"})
	reg.RegisterCommand("/top", commands.Command{Handler: noop, Description: "Top", Aliases: []string{"leaders"}})

	if len(reg.Commands()) != 3 {
		t.Fatalf("commands = %v", reg.Commands())
	}
	visible := reg.ListCommands(true)
	if len(visible) != 2 || visible[0].Text != "/start" || visible[1].Text != "/top" {
		t.Fatalf("visible = %+v", visible)
	}
	if key, _, ok := reg.LookupCommand("/leaders"); !ok || key != "/top" {
		t.Fatalf("alias lookup = %q, %v", key, ok)
	}

	if err := reg.RegisterCallback("quiz", noop); err != nil {
		t.Fatalf("register callback: %v", err)
	}
	if err := reg.RegisterCallback("quiz", noop); err == nil {
		t.Fatal("duplicate callback accepted")
	}
	if got := reg.ListCallbacks(); len(got) != 1 || got[0] != "quiz" {
		t.Fatalf("callbacks = %v", got)
	}
}

func TestRegistryNormalizesNames(t *testing.T) {
	reg := NewRegistry()
	noop := func(tele.Context) error { return nil }
	if err := reg.RegisterCommand(" /Quiz ", commands.Command{Handler: noop, Description: "Quiz", Aliases: []string{"Play", "quiz"}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.RegisterCommand("/play", commands.Command{Handler: noop, Description: "taken by alias"}); err == nil {
		t.Fatal("command shadowing an alias accepted")
	}
	if err := reg.RegisterCommand("/", commands.Command{Handler: noop, Description: "empty"}); err == nil {
		t.Fatal("bare slash accepted")
	}
	for _, name := range []string{"/quiz", "QUIZ", "/PLAY", "play"} {
		if key, _, ok := reg.LookupCommand(name); !ok || key != "/quiz" {
			t.Errorf("LookupCommand(%q) = %q, %v", name, key, ok)
		}
	}
	snapshot := reg.Commands()
	delete(snapshot, "/quiz")
	if len(reg.Commands()) != 1 {
		t.Fatal("Commands leaked the internal map")
	}
}

func TestDefaultMiddlewares(t *testing.T) {
	names := func(chain []Middleware) string {
		out := make([]string, len(chain))
		for i, mw := range chain {
			out[i] = mw.Name
		}
		return strings.Join(out, ",")
	}

	cfg := &coreconfig.Config{}
	if got := names(DefaultMiddlewares(cfg, RateLimitHooks{})); got != "recover,logger,tracing,metrics" {
		t.Fatalf("without rate limit = %s", got)
	}
	cfg.RateLimit.IntervalMS = 500
	if got := names(DefaultMiddlewares(cfg, RateLimitHooks{})); got != "recover,logger,tracing,rate_limit,metrics" {
		t.Fatalf("with rate limit = %s", got)
	}
}

func TestUnwrapURLErrorHidesToken(t *testing.T) {
	err := &url.Error{Op: "Post", URL: "https://api.telegram.org/bot1:secret/getMe", Err: errors.New("connection refused")}
	if got := unwrapURLError(err).Error(); strings.Contains(got, "secret") {
		t.Fatalf("token leaked: %q", got)
	}
}
