package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/quizbot/core/telegram"
	quizconfig "github.com/m3rciful/quizbot/quiz/config"
	"github.com/m3rciful/quizbot/quiz/catalog"
	"github.com/m3rciful/quizbot/quiz/conversation"
	"github.com/m3rciful/quizbot/quiz/results"
	"github.com/m3rciful/quizbot/quiz/session"
)

type sent struct {
	text   string
	markup *tele.ReplyMarkup
	edit   bool
}

// fakeContext captures outbound calls; anything else hits the nil embedded
// tele.Context and panics.
type fakeContext struct {
	tele.Context
	update    tele.Update
	store     map[string]any
	out       []sent
	responses []string
}

func newMessage(user *tele.User, text string) *fakeContext {
	return &fakeContext{
		update: tele.Update{ID: 1, Message: &tele.Message{Sender: user, Chat: &tele.Chat{ID: user.ID}, Text: text}},
		store:  map[string]any{},
	}
}

func newCallback(user *tele.User, token string) *fakeContext {
	return &fakeContext{
		update: tele.Update{ID: 2, Callback: &tele.Callback{
			Sender:  user,
			Data:    "\f" + CallbackUnique + "|" + token,
			Message: &tele.Message{ID: 10, Chat: &tele.Chat{ID: user.ID}},
		}},
		store: map[string]any{},
	}
}

func (f *fakeContext) Update() tele.Update      { return f.update }
func (f *fakeContext) Callback() *tele.Callback { return f.update.Callback }
func (f *fakeContext) Message() *tele.Message   { return f.update.Message }
func (f *fakeContext) Get(key string) any       { return f.store[key] }
func (f *fakeContext) Set(key string, v any)    { f.store[key] = v }

func (f *fakeContext) Sender() *tele.User {
	if f.update.Callback != nil {
		return f.update.Callback.Sender
	}
	return f.update.Message.Sender
}

func (f *fakeContext) Chat() *tele.Chat {
	if f.update.Callback != nil {
		return f.update.Callback.Message.Chat
	}
	return f.update.Message.Chat
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	text := ""
	if len(resp) > 0 && resp[0] != nil {
		text = resp[0].Text
	}
	f.responses = append(f.responses, text)
	return nil
}

func (f *fakeContext) Send(what any, opts ...any) error {
	f.out = append(f.out, capture(what, opts, false))
	return nil
}

func (f *fakeContext) EditOrSend(what any, opts ...any) error {
	f.out = append(f.out, capture(what, opts, true))
	return nil
}

func capture(what any, opts []any, edit bool) sent {
	s := sent{text: what.(string), edit: edit}
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.ReplyMarkup:
			s.markup = v
		case *tele.SendOptions:
			s.markup = v.ReplyMarkup
		}
	}
	return s
}

func (f *fakeContext) last(t *testing.T) sent {
	t.Helper()
	if len(f.out) == 0 {
		t.Fatal("nothing sent")
	}
	return f.out[len(f.out)-1]
}

func buttonData(t *testing.T, s sent) []string {
	t.Helper()
	if s.markup == nil {
		return nil
	}
	var data []string
	for _, row := range s.markup.InlineKeyboard {
		for _, btn := range row {
			if btn.Unique != CallbackUnique {
				t.Fatalf("button %q routed to %q", btn.Text, btn.Unique)
			}
			data = append(data, btn.Data)
		}
	}
	return data
}

func newTestBot(t *testing.T) (*Bot, results.Store) {
	t.Helper()
	cat, err := catalog.New([]catalog.Item{
		{Prompt: "2+2?", Options: []string{"3", "4", "5", "22"}, Correct: 1},
		{Prompt: "Capital of Italy?", Options: []string{"Rome", "Paris", "Oslo", "Bern"}, Correct: 0},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	cfg := &quizconfig.AppConfig{}
	cfg.Quiz.StartCommand = "/start"
	cfg.Quiz.CancelCommand = "/cancel"
	cfg.Quiz.TopLimit = 10
	store := results.NewMemoryStore()
	engine := conversation.NewEngine(cat, session.NewMemoryStore(), conversation.Texts{})
	return New(cfg, engine, store), store
}

func TestQuizOverTelegram(t *testing.T) {
	b, store := newTestBot(t)
	user := &tele.User{ID: 7, Username: "ada"}

	msg := newMessage(user, "/start")
	if err := b.onStart(msg); err != nil {
		t.Fatalf("start: %v", err)
	}
	welcome := msg.last(t)
	if welcome.edit || !strings.HasPrefix(welcome.text, "Welcome") {
		t.Fatalf("welcome = %+v", welcome)
	}
	if got := buttonData(t, welcome); len(got) != 1 || got[0] != conversation.TokenStartQuiz {
		t.Fatalf("welcome buttons = %v", got)
	}

	cb := newCallback(user, conversation.TokenStartQuiz)
	if err := b.onCallback(cb); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	q1 := cb.last(t)
	if !q1.edit || q1.text != "2+2?" {
		t.Fatalf("first question = %+v", q1)
	}
	if got := buttonData(t, q1); len(got) != 4 || got[1] != "answer_1" {
		t.Fatalf("question buttons = %v", got)
	}
	if len(q1.markup.InlineKeyboard) != 4 {
		t.Fatalf("rows = %d, want one option per row", len(q1.markup.InlineKeyboard))
	}
	if len(cb.responses) != 1 || cb.responses[0] != "" {
		t.Fatalf("responses = %q", cb.responses)
	}

	cb = newCallback(user, "answer_1")
	if err := b.onCallback(cb); err != nil {
		t.Fatalf("answer 1: %v", err)
	}
	if cb.responses[0] != "Correct!" || cb.last(t).text != "Capital of Italy?" {
		t.Fatalf("after answer 1: responses %q, sent %+v", cb.responses, cb.last(t))
	}

	cb = newCallback(user, "answer_2")
	if err := b.onCallback(cb); err != nil {
		t.Fatalf("answer 2: %v", err)
	}
	if cb.responses[0] != "Incorrect! Correct answer: Rome" {
		t.Fatalf("feedback = %q", cb.responses[0])
	}
	summary := cb.last(t)
	if !strings.Contains(summary.text, "1/2") {
		t.Fatalf("summary = %q", summary.text)
	}
	if got := buttonData(t, summary); len(got) != 1 || got[0] != conversation.TokenStartQuiz {
		t.Fatalf("summary buttons = %v", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	st, err := store.UserStats(ctx, user.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Runs != 1 || st.Last.Score != 1 || st.Last.Total != 2 || st.Last.Username != "@ada" {
		t.Fatalf("stats = %+v", st)
	}
}

func TestStaleButtonIsAnsweredSilently(t *testing.T) {
	b, _ := newTestBot(t)
	user := &tele.User{ID: 8, FirstName: "Grace"}

	cb := newCallback(user, "answer_0")
	if err := b.onCallback(cb); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if len(cb.out) != 0 {
		t.Fatalf("stale answer rendered %+v", cb.out)
	}
	if len(cb.responses) != 1 || cb.responses[0] != "" {
		t.Fatalf("responses = %q", cb.responses)
	}
}

func TestUnknownTokenIsIgnored(t *testing.T) {
	b, _ := newTestBot(t)
	cb := newCallback(&tele.User{ID: 9}, "answer_x")
	if err := b.onCallback(cb); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if len(cb.out) != 0 || len(cb.responses) != 1 {
		t.Fatalf("out = %+v responses = %q", cb.out, cb.responses)
	}
}

func TestCancelSendsFarewell(t *testing.T) {
	b, _ := newTestBot(t)
	user := &tele.User{ID: 10}
	_ = b.onStart(newMessage(user, "/start"))
	_ = b.onCallback(newCallback(user, conversation.TokenStartQuiz))

	msg := newMessage(user, "/cancel")
	if err := b.onCancel(msg); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	out := msg.last(t)
	if !strings.HasPrefix(out.text, "Goodbye") || out.markup != nil {
		t.Fatalf("farewell = %+v", out)
	}
	if n := b.engine.Store().Active(); n != 0 {
		t.Fatalf("active sessions = %d", n)
	}
}

func TestRegistryCommands(t *testing.T) {
	b, _ := newTestBot(t)
	reg := b.Registry()
	for _, name := range []string{"/start", "/cancel", "/stats", "/top"} {
		if _, _, ok := reg.LookupCommand(name); !ok {
			t.Errorf("command %s not registered", name)
		}
	}
	if _, _, ok := reg.LookupCommand("/active"); ok {
		t.Error("/active registered without an admin")
	}
	if _, ok := reg.GetCallback(CallbackUnique); !ok {
		t.Error("quiz callback not registered")
	}

	b.cfg.Telegram.AdminID = 1
	if _, cmd, ok := b.Registry().LookupCommand("/active"); !ok || !cmd.AdminOnly || !cmd.Hidden {
		t.Fatalf("/active = %+v, %v", cmd, ok)
	}
}

func TestStatsCommands(t *testing.T) {
	b, store := newTestBot(t)
	user := &tele.User{ID: 11, Username: "lin"}

	msg := newMessage(user, "/stats")
	if err := b.onStats(msg); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if got := msg.last(t).text; !strings.Contains(got, "/start") {
		t.Fatalf("empty stats = %q", got)
	}

	msg = newMessage(user, "/top")
	if err := b.onTop(msg); err != nil {
		t.Fatalf("top: %v", err)
	}
	if got := msg.last(t).text; got != emptyTopText {
		t.Fatalf("empty top = %q", got)
	}

	ctx := context.Background()
	if err := store.Record(ctx, results.NewResult(user.ID, "@lin", 3, 4)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Record(ctx, results.NewResult(12, "@max", 4, 4)); err != nil {
		t.Fatalf("record: %v", err)
	}

	msg = newMessage(user, "/stats")
	_ = b.onStats(msg)
	if got := msg.last(t).text; !strings.Contains(got, "Quizzes finished: 1") || !strings.Contains(got, "Best: 3/4 (75%)") {
		t.Fatalf("stats = %q", got)
	}

	msg = newMessage(user, "/top")
	_ = b.onTop(msg)
	want := "Leaderboard\n\n1. @max: 4/4 (100%)\n2. @lin: 3/4 (75%)"
	if got := msg.last(t).text; got != want {
		t.Fatalf("top = %q, want %q", got, want)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		user tele.User
		want string
	}{
		{tele.User{Username: "ada", FirstName: "Ada"}, "@ada"},
		{tele.User{FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{tele.User{FirstName: "Ada"}, "Ada"},
		{tele.User{}, "anonymous"},
	}
	for _, tt := range tests {
		if got := displayName(&tt.user); got != tt.want {
			t.Errorf("displayName(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}
}

func rateLimited(t *testing.T, b *Bot, h tele.HandlerFunc) tele.HandlerFunc {
	t.Helper()
	for _, mw := range tg.DefaultMiddlewares(b.cfg.CoreConfig(), b.rateLimitHooks()) {
		if mw.Name == "rate_limit" {
			return mw.Use(h)
		}
	}
	t.Fatal("rate limit not installed")
	return nil
}

func TestCancelBypassesRateLimit(t *testing.T) {
	b, _ := newTestBot(t)
	b.cfg.RateLimit.IntervalMS = 500
	b.cfg.RateLimit.ExcludeUpdates = []string{"callback"}

	var chatter int
	h := rateLimited(t, b, func(c tele.Context) error {
		if c.Callback() != nil {
			return b.onCallback(c)
		}
		switch c.Message().Text {
		case "/start":
			return b.onStart(c)
		case "/cancel":
			return b.onCancel(c)
		}
		chatter++
		return nil
	})

	user := &tele.User{ID: 13}
	_ = h(newMessage(user, "/start"))
	_ = h(newCallback(user, conversation.TokenStartQuiz))
	_ = h(newMessage(user, "hello"))
	_ = h(newMessage(user, "hello"))
	if chatter != 1 {
		t.Fatalf("plain messages handled = %d, want 1", chatter)
	}

	msg := newMessage(user, "/cancel")
	if err := h(msg); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if out := msg.last(t); !strings.HasPrefix(out.text, "Goodbye") {
		t.Fatalf("farewell = %+v", out)
	}
	if n := b.engine.Store().Active(); n != 0 {
		t.Fatalf("active sessions after cancel = %d", n)
	}
}

func TestIsSessionCommand(t *testing.T) {
	b, _ := newTestBot(t)
	user := &tele.User{ID: 14}
	tests := []struct {
		text string
		want bool
	}{
		{"/start", true},
		{"/Cancel", true},
		{"/cancel@quizbot", true},
		{"/start now", true},
		{"/stats", false},
		{"cancel", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := b.isSessionCommand(newMessage(user, tt.text)); got != tt.want {
			t.Errorf("isSessionCommand(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
	if b.isSessionCommand(newCallback(user, conversation.TokenStartQuiz)) {
		t.Error("callback treated as a session command")
	}
}

func TestRecordAfterWaitIsSkipped(t *testing.T) {
	b, store := newTestBot(t)
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	user := &tele.User{ID: 15}
	b.record(context.Background(), user, conversation.Result{Score: 1, Total: 2})
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if _, err := store.UserStats(context.Background(), user.ID); !errors.Is(err, results.ErrNoResults) {
		t.Fatalf("stats after shutdown = %v", err)
	}
}

func TestStatsWithoutSender(t *testing.T) {
	b, _ := newTestBot(t)
	c := &senderless{}
	if err := b.onStats(c); err != nil {
		t.Fatalf("stats: %v", err)
	}
}

type senderless struct{ tele.Context }

func (senderless) Sender() *tele.User { return nil }
