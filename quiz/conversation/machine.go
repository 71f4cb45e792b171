// Package conversation implements the quiz dialogue state machine.
//
// Decide is a pure function of (state, session, event). Engine wraps it with
// per-user serialization and applies the resulting session effect.
package conversation

import (
	"errors"
	"fmt"

	"github.com/m3rciful/quizbot/quiz/catalog"
	"github.com/m3rciful/quizbot/quiz/session"
)

// ErrInvalidEvent marks an event with no transition from the current state,
// including answers outside the current question's options.
var ErrInvalidEvent = errors.New("conversation: event not valid for state")

// Effect is the session mutation requested by a decision.
type Effect int

const (
	EffectNone Effect = iota
	// EffectCreate creates or resets the session to {0,0}.
	EffectCreate
	// EffectAdvance moves to the next question, adding a point when Correct.
	// When Finished is set the session is cleared afterwards.
	EffectAdvance
	// EffectClear drops the session.
	EffectClear
)

func (e Effect) String() string {
	switch e {
	case EffectCreate:
		return "create"
	case EffectAdvance:
		return "advance"
	case EffectClear:
		return "clear"
	default:
		return "none"
	}
}

// Decision is the outcome of Decide.
type Decision struct {
	Next   session.State
	Reply  *Reply
	Effect Effect

	Correct  bool
	Finished bool
	// Score and Total are the final result when Finished.
	Score int
	Total int
}

// Decide computes the transition for ev. sess is nil when the user has no
// session. It never mutates its inputs.
func Decide(cat *catalog.Catalog, texts Texts, st session.State, sess *session.Session, ev Event) (Decision, error) {
	switch ev.Kind {
	case EventCancel:
		return Decision{Next: session.StateIdle, Reply: texts.farewell(), Effect: EffectClear}, nil

	case EventStartCommand:
		d := Decision{Next: session.StateAwaitingStart, Reply: texts.welcome()}
		if sess != nil {
			d.Effect = EffectClear
		}
		return d, nil

	case EventStartQuiz:
		if st != session.StateAwaitingStart {
			return Decision{}, fmt.Errorf("%w: %s in %s", ErrInvalidEvent, ev.Kind, st)
		}
		first, err := cat.ItemAt(0)
		if err != nil {
			return Decision{}, err
		}
		return Decision{
			Next:   session.StateAwaitingAnswer,
			Reply:  question(first, ""),
			Effect: EffectCreate,
		}, nil

	case EventAnswer:
		if st != session.StateAwaitingAnswer {
			return Decision{}, fmt.Errorf("%w: %s in %s", ErrInvalidEvent, ev.Kind, st)
		}
		if sess == nil {
			return Decision{}, session.ErrNotFound
		}
		return decideAnswer(cat, texts, *sess, ev.Option)
	}
	return Decision{}, fmt.Errorf("%w: %s", ErrInvalidEvent, ev.Kind)
}

func decideAnswer(cat *catalog.Catalog, texts Texts, sess session.Session, option int) (Decision, error) {
	current, err := cat.ItemAt(sess.CurrentIndex)
	if err != nil {
		return Decision{}, err
	}
	if option < 0 || option >= len(current.Options) {
		return Decision{}, fmt.Errorf("%w: option %d of %d", ErrInvalidEvent, option, len(current.Options))
	}

	correct := option == current.Correct
	feedback := texts.feedback(current, correct)
	score := sess.Score
	if correct {
		score++
	}
	nextIndex := sess.CurrentIndex + 1
	total := cat.Size()

	if nextIndex == total {
		return Decision{
			Next:     session.StateAwaitingStart,
			Reply:    texts.summary(feedback, score, total),
			Effect:   EffectAdvance,
			Correct:  correct,
			Finished: true,
			Score:    score,
			Total:    total,
		}, nil
	}

	next, err := cat.ItemAt(nextIndex)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Next:    session.StateAwaitingAnswer,
		Reply:   question(next, feedback),
		Effect:  EffectAdvance,
		Correct: correct,
	}, nil
}
