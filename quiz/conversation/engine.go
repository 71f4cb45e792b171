package conversation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/quiz/catalog"
	"github.com/m3rciful/quizbot/quiz/session"
)

// Result summarizes a finished quiz run.
type Result struct {
	Score int
	Total int
}

// Outcome is what the transport renders after an event.
// Reply is nil when the event had no visible effect.
type Outcome struct {
	Reply    *Reply
	State    session.State
	Ignored  bool
	Finished *Result
}

// Engine runs Decide for one user at a time and applies its effects.
type Engine struct {
	catalog *catalog.Catalog
	store   session.Store
	texts   Texts
}

// NewEngine wires the engine. Empty texts and templates failing
// Texts.Validate fall back to DefaultTexts.
func NewEngine(cat *catalog.Catalog, store session.Store, texts Texts) *Engine {
	return &Engine{
		catalog: cat,
		store:   store,
		texts:   texts.Merge(DefaultTexts()).orDefaults(),
	}
}

// Catalog exposes the catalog the engine serves.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Store exposes the session store.
func (e *Engine) Store() session.Store { return e.store }

// Handle processes ev for userID. Events for the same user are serialized;
// errors are recovered here and never returned to the transport.
func (e *Engine) Handle(ctx context.Context, userID int64, ev Event) Outcome {
	unlock := e.store.Lock(userID)
	defer unlock()

	st := e.store.State(userID)
	var cur *session.Session
	if s, ok := e.store.Get(userID); ok {
		cur = &s
	}

	d, err := Decide(e.catalog, e.texts, st, cur, ev)
	if err != nil {
		return e.recover(ctx, userID, st, ev, err)
	}

	if err := e.apply(userID, d); err != nil {
		return e.recover(ctx, userID, st, ev, err)
	}
	e.store.SetState(userID, d.Next)

	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("op", ev.Kind.String()),
		slog.String("state", string(st)),
		slog.String("next_state", string(d.Next)),
		slog.String("effect", d.Effect.String()),
	}
	if ev.Kind == EventAnswer {
		attrs = append(attrs, slog.Int("option", ev.Option), slog.Bool("correct", d.Correct))
	}
	logger.Debug(ctx, logger.CompEngine, "event.handled", attrs...)

	out := Outcome{Reply: d.Reply, State: d.Next}
	if d.Finished {
		out.Finished = &Result{Score: d.Score, Total: d.Total}
		logger.Info(ctx, logger.CompEngine, "quiz.finished",
			slog.Int("score", d.Score),
			slog.Int("total", d.Total),
		)
	}
	return out
}

func (e *Engine) apply(userID int64, d Decision) error {
	switch d.Effect {
	case EffectCreate:
		e.store.CreateOrReset(userID)
	case EffectClear:
		e.store.Clear(userID)
	case EffectAdvance:
		_, err := e.store.Update(userID, func(s *session.Session) {
			s.CurrentIndex++
			if d.Correct {
				s.Score++
			}
		})
		if err != nil {
			return err
		}
		if d.Finished {
			e.store.Clear(userID)
		}
	}
	return nil
}

func (e *Engine) recover(ctx context.Context, userID int64, st session.State, ev Event, err error) Outcome {
	attrs := []slog.Attr{
		slog.String("op", ev.Kind.String()),
		slog.String("state", string(st)),
		slog.String("err", err.Error()),
	}
	switch {
	case errors.Is(err, ErrInvalidEvent):
		logger.Debug(ctx, logger.CompEngine, "event.ignored", append(attrs, slog.String("status", "ok"), slog.String("outcome", "ignored"))...)
		return Outcome{State: st, Ignored: true}
	case errors.Is(err, session.ErrNotFound):
		logger.Warn(ctx, logger.CompEngine, "session.missing", append(attrs, slog.String("status", "fail"))...)
	default:
		// Catalog bounds violations mean the session and catalog disagree.
		logger.Error(ctx, logger.CompEngine, "session.corrupt",
			append(attrs, slog.String("status", "fail"), slog.String("err_code", "CATALOG_OUT_OF_RANGE"))...)
	}
	e.store.Clear(userID)
	e.store.SetState(userID, session.StateAwaitingStart)
	return Outcome{Reply: e.texts.restartPrompt(), State: session.StateAwaitingStart}
}
