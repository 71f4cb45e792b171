package conversation

import (
	"context"
	"sync"
	"testing"

	"github.com/m3rciful/quizbot/quiz/session"
)

func newTestEngine(t *testing.T) (*Engine, session.Store) {
	t.Helper()
	store := session.NewMemoryStore()
	return NewEngine(testCatalog(t), store, Texts{}), store
}

func TestEngineFullRun(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	const uid = int64(42)

	out := e.Handle(ctx, uid, StartCommandEvent())
	if out.State != session.StateAwaitingStart || out.Reply == nil || len(out.Reply.Buttons) != 1 {
		t.Fatalf("start outcome = %+v", out)
	}
	if out.Reply.Buttons[0].Token != TokenStartQuiz {
		t.Fatalf("start button token = %q", out.Reply.Buttons[0].Token)
	}

	out = e.Handle(ctx, uid, StartQuizEvent())
	if out.State != session.StateAwaitingAnswer || out.Reply.Text != "Q1" {
		t.Fatalf("start quiz outcome = %+v", out)
	}

	out = e.Handle(ctx, uid, AnswerEvent(0))
	if out.Reply.Feedback != "Correct!" || out.Reply.Text != "Q2" {
		t.Fatalf("answer 1 outcome = %+v", out.Reply)
	}
	if s, _ := store.Get(uid); s != (session.Session{CurrentIndex: 1, Score: 1}) {
		t.Fatalf("session after answer 1 = %+v", s)
	}

	out = e.Handle(ctx, uid, AnswerEvent(2))
	if out.Reply.Feedback != "Incorrect! Correct answer: Rome" || out.Reply.Text != "Q3" {
		t.Fatalf("answer 2 outcome = %+v", out.Reply)
	}
	if s, _ := store.Get(uid); s != (session.Session{CurrentIndex: 2, Score: 1}) {
		t.Fatalf("session after answer 2 = %+v", s)
	}

	out = e.Handle(ctx, uid, AnswerEvent(2))
	if out.Reply.Feedback != "Correct!" {
		t.Fatalf("answer 3 feedback = %q", out.Reply.Feedback)
	}
	if out.Finished == nil || *out.Finished != (Result{Score: 2, Total: 3}) {
		t.Fatalf("finished = %+v", out.Finished)
	}
	if out.Reply.Text != "Quiz finished!\nYour score: 2/3\n\nThanks for playing!" {
		t.Fatalf("summary = %q", out.Reply.Text)
	}
	if _, ok := store.Get(uid); ok {
		t.Fatal("session not cleared after completion")
	}
	if st := store.State(uid); st != session.StateAwaitingStart {
		t.Fatalf("state after completion = %s", st)
	}

	// restart button from the summary begins a new run
	out = e.Handle(ctx, uid, StartQuizEvent())
	if out.Reply.Text != "Q1" {
		t.Fatalf("restart outcome = %+v", out.Reply)
	}
	if s, _ := store.Get(uid); s != (session.Session{}) {
		t.Fatalf("session after restart = %+v", s)
	}
}

func TestEngineCancelMidQuiz(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	e.Handle(ctx, 1, StartCommandEvent())
	e.Handle(ctx, 1, StartQuizEvent())
	e.Handle(ctx, 1, AnswerEvent(0))

	out := e.Handle(ctx, 1, CancelEvent())
	if out.State != session.StateIdle || out.Reply.Text != DefaultTexts().Farewell {
		t.Fatalf("cancel outcome = %+v", out)
	}
	if _, ok := store.Get(1); ok {
		t.Fatal("session survived cancel")
	}

	out = e.Handle(ctx, 1, AnswerEvent(0))
	if !out.Ignored || out.Reply != nil {
		t.Fatalf("answer after cancel = %+v", out)
	}
	if _, ok := store.Get(1); ok {
		t.Fatal("answer after cancel recreated session")
	}

	// cancel is idempotent
	out = e.Handle(ctx, 1, CancelEvent())
	if out.State != session.StateIdle || out.Ignored {
		t.Fatalf("second cancel = %+v", out)
	}
}

func TestEngineOutOfRangeAnswerLeavesSession(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	e.Handle(ctx, 1, StartCommandEvent())
	e.Handle(ctx, 1, StartQuizEvent())

	out := e.Handle(ctx, 1, AnswerEvent(7))
	if !out.Ignored {
		t.Fatalf("out of range answer not ignored: %+v", out)
	}
	if s, _ := store.Get(1); s != (session.Session{}) {
		t.Fatalf("session changed: %+v", s)
	}
	if st := store.State(1); st != session.StateAwaitingAnswer {
		t.Fatalf("state changed: %s", st)
	}
}

func TestEngineRecoversMissingSession(t *testing.T) {
	e, store := newTestEngine(t)
	store.SetState(1, session.StateAwaitingAnswer)

	out := e.Handle(context.Background(), 1, AnswerEvent(0))
	if out.Ignored || out.Reply == nil || out.Reply.Text != DefaultTexts().Restart {
		t.Fatalf("outcome = %+v", out)
	}
	if st := store.State(1); st != session.StateAwaitingStart {
		t.Fatalf("state = %s", st)
	}
}

func TestEngineRecoversCorruptSession(t *testing.T) {
	e, store := newTestEngine(t)
	store.SetState(1, session.StateAwaitingAnswer)
	store.CreateOrReset(1)
	_, _ = store.Update(1, func(s *session.Session) { s.CurrentIndex = 10 })

	out := e.Handle(context.Background(), 1, AnswerEvent(0))
	if out.Reply == nil || out.Reply.Text != DefaultTexts().Restart {
		t.Fatalf("outcome = %+v", out)
	}
	if _, ok := store.Get(1); ok {
		t.Fatal("corrupt session not cleared")
	}
}

func TestEngineStartCommandResetsRun(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	e.Handle(ctx, 1, StartCommandEvent())
	e.Handle(ctx, 1, StartQuizEvent())
	e.Handle(ctx, 1, AnswerEvent(0))

	out := e.Handle(ctx, 1, StartCommandEvent())
	if out.State != session.StateAwaitingStart {
		t.Fatalf("state = %s", out.State)
	}
	if _, ok := store.Get(1); ok {
		t.Fatal("start command kept old session")
	}
	if out := e.Handle(ctx, 1, AnswerEvent(0)); !out.Ignored {
		t.Fatalf("answer before start quiz accepted: %+v", out)
	}
}

func TestEngineConcurrentDuplicateTaps(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	e.Handle(ctx, 1, StartCommandEvent())
	e.Handle(ctx, 1, StartQuizEvent())

	// Every tap reaches the engine; each advances at most one question
	// and the run never advances past the catalog.
	var wg sync.WaitGroup
	var mu sync.Mutex
	finished := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := e.Handle(ctx, 1, AnswerEvent(0))
			if out.Finished != nil {
				mu.Lock()
				finished++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if finished != 1 {
		t.Fatalf("finished %d times, want 1", finished)
	}
	if _, ok := store.Get(1); ok {
		t.Fatal("session survived completion")
	}
}

func TestEngineUsersAreIndependent(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	for _, uid := range []int64{1, 2} {
		e.Handle(ctx, uid, StartCommandEvent())
		e.Handle(ctx, uid, StartQuizEvent())
	}
	e.Handle(ctx, 1, AnswerEvent(0))
	e.Handle(ctx, 1, CancelEvent())

	if s, ok := store.Get(2); !ok || s != (session.Session{}) {
		t.Fatalf("user 2 session = %+v, %v", s, ok)
	}
	if out := e.Handle(ctx, 2, AnswerEvent(0)); out.Reply == nil || out.Reply.Feedback != "Correct!" {
		t.Fatalf("user 2 answer = %+v", out)
	}
}

func TestEngineScoreMonotonic(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	e.Handle(ctx, 1, StartCommandEvent())
	e.Handle(ctx, 1, StartQuizEvent())

	prev := session.Session{}
	for _, opt := range []int{1, 0} {
		e.Handle(ctx, 1, AnswerEvent(opt))
		cur, _ := store.Get(1)
		if cur.CurrentIndex != prev.CurrentIndex+1 {
			t.Fatalf("index %d -> %d", prev.CurrentIndex, cur.CurrentIndex)
		}
		if cur.Score < prev.Score || cur.Score > prev.Score+1 {
			t.Fatalf("score %d -> %d", prev.Score, cur.Score)
		}
		if cur.Score > cur.CurrentIndex {
			t.Fatalf("score %d exceeds answered %d", cur.Score, cur.CurrentIndex)
		}
		prev = cur
	}
}

func TestEngineTemplateFallback(t *testing.T) {
	tests := []struct {
		name      string
		incorrect string
		want      string
	}{
		{"custom", "Nope, it was %s.", "Nope, it was Rome."},
		{"missing placeholder", "Wrong!", "Incorrect! Correct answer: Rome"},
		{"wrong verb", "Wrong: %d", "Incorrect! Correct answer: Rome"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(testCatalog(t), session.NewMemoryStore(), Texts{Incorrect: tt.incorrect})
			ctx := context.Background()
			e.Handle(ctx, 1, StartCommandEvent())
			e.Handle(ctx, 1, StartQuizEvent())
			e.Handle(ctx, 1, AnswerEvent(0))
			out := e.Handle(ctx, 1, AnswerEvent(2))
			if out.Reply.Feedback != tt.want {
				t.Fatalf("feedback = %q, want %q", out.Reply.Feedback, tt.want)
			}
		})
	}
}
