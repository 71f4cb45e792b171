package middleware

import (
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type fakeContext struct {
	tele.Context
	update tele.Update
	store  map[string]any
}

func message(userID int64) *fakeContext {
	return &fakeContext{
		update: tele.Update{Message: &tele.Message{Sender: &tele.User{ID: userID}, Chat: &tele.Chat{ID: userID}}},
		store:  map[string]any{},
	}
}

func callback(userID int64) *fakeContext {
	return &fakeContext{
		update: tele.Update{Callback: &tele.Callback{Sender: &tele.User{ID: userID}}},
		store:  map[string]any{},
	}
}

func (f *fakeContext) Update() tele.Update   { return f.update }
func (f *fakeContext) Get(key string) any    { return f.store[key] }
func (f *fakeContext) Set(key string, v any) { f.store[key] = v }

func (f *fakeContext) Sender() *tele.User {
	if f.update.Callback != nil {
		return f.update.Callback.Sender
	}
	return f.update.Message.Sender
}

func (f *fakeContext) Chat() *tele.Chat {
	if f.update.Message != nil {
		return f.update.Message.Chat
	}
	return nil
}

func counting(n *int) tele.HandlerFunc {
	return func(tele.Context) error {
		*n++
		return nil
	}
}

func TestRateLimitDropsBurst(t *testing.T) {
	var handled, limited int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: counting(&limited),
	})
	h := mw(counting(&handled))

	_ = h(message(1))
	_ = h(message(1))
	_ = h(message(2))
	if handled != 2 || limited != 1 {
		t.Fatalf("handled = %d, limited = %d", handled, limited)
	}

	_ = h(callback(1))
	_ = h(callback(1))
	if handled != 4 {
		t.Fatalf("excluded callbacks were limited: handled = %d", handled)
	}
}

func TestRateLimitExempt(t *testing.T) {
	var handled, limited int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		Exempt:    func(c tele.Context) bool { return c.Update().Message.Text == "/cancel" },
		OnLimited: counting(&limited),
	})
	h := mw(counting(&handled))

	first, second, cancel := message(1), message(1), message(1)
	cancel.update.Message.Text = "/cancel"
	_ = h(first)
	_ = h(second)
	_ = h(cancel)
	if handled != 2 || limited != 1 {
		t.Fatalf("handled = %d, limited = %d", handled, limited)
	}
}

func TestPruneLastSeen(t *testing.T) {
	now := time.Now()
	seen := map[int64]time.Time{
		1: now.Add(-time.Minute),
		2: now,
	}
	pruneLastSeen(seen, now, time.Second)
	if _, ok := seen[1]; ok {
		t.Fatal("stale user kept")
	}
	if _, ok := seen[2]; !ok {
		t.Fatal("recent user dropped")
	}
}

func TestAdminOnly(t *testing.T) {
	tests := []struct {
		name    string
		adminID int64
		userID  int64
		allowed bool
	}{
		{"admin", 7, 7, true},
		{"stranger", 7, 8, false},
		{"no admin configured", 0, 7, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var handled, rejected int
			h := AdminOnlyMiddleware(AdminOptions{AdminID: tt.adminID, OnReject: counting(&rejected)})(counting(&handled))
			if err := h(message(tt.userID)); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if (handled == 1) != tt.allowed || (rejected == 1) == tt.allowed {
				t.Fatalf("handled = %d, rejected = %d", handled, rejected)
			}
		})
	}
}

func (f *fakeContext) Callback() *tele.Callback { return f.update.Callback }

func (f *fakeContext) Respond(...*tele.CallbackResponse) error {
	f.store["responded"] = true
	return nil
}

func TestRecoverAnswersCallback(t *testing.T) {
	c := callback(3)
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	if err := h(c); err != nil {
		t.Fatalf("recovered handler returned %v", err)
	}
	if c.store["responded"] != true {
		t.Fatal("callback left unanswered after panic")
	}
}

func (f *fakeContext) Send(any, ...any) error { return nil }

func TestMessageMetricsCounts(t *testing.T) {
	c := callback(4)
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		_ = c.Send("plain")
		_ = c.Send("with keyboard", &tele.ReplyMarkup{})
		return c.Respond()
	})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	msgs, kb := GetCounters(c)
	if msgs != 2 || !kb {
		t.Fatalf("counters = %d, %v", msgs, kb)
	}
	if Answers(c) != 1 {
		t.Fatalf("answers = %d", Answers(c))
	}
}

func TestLoggerMiddlewareMarksUpdateOnce(t *testing.T) {
	var handled int
	h := LoggerMiddleware(LoggerMiddleware(counting(&handled)))
	c := message(3)
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if handled != 1 {
		t.Fatalf("handled = %d", handled)
	}
	if logged, _ := c.Get(receivedKey).(bool); !logged {
		t.Fatal("update not marked as logged")
	}
	if rid, _ := c.Get("rid").(string); rid == "" {
		t.Fatal("rid not exposed to handlers")
	}
}
