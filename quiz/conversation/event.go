package conversation

import (
	"strconv"
	"strings"
)

// EventKind enumerates the inbound events the engine understands.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventStartCommand
	EventStartQuiz
	EventAnswer
	EventCancel
)

func (k EventKind) String() string {
	switch k {
	case EventStartCommand:
		return "start_command"
	case EventStartQuiz:
		return "start_quiz"
	case EventAnswer:
		return "answer"
	case EventCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Event is a typed inbound event. Option is meaningful only for EventAnswer.
type Event struct {
	Kind   EventKind
	Option int
}

// StartCommandEvent is sent when the user issues the entry command.
func StartCommandEvent() Event { return Event{Kind: EventStartCommand} }

// StartQuizEvent is sent when the user presses the start or restart button.
func StartQuizEvent() Event { return Event{Kind: EventStartQuiz} }

// AnswerEvent is sent when the user picks option i of the current question.
func AnswerEvent(i int) Event { return Event{Kind: EventAnswer, Option: i} }

// CancelEvent is sent when the user issues the cancel command.
func CancelEvent() Event { return Event{Kind: EventCancel} }

// Action tokens carried by buttons and returned by the transport.
const (
	TokenStartQuiz = "start_quiz"
	answerPrefix   = "answer_"
)

// AnswerToken encodes option index i as a button token.
func AnswerToken(i int) string {
	return answerPrefix + strconv.Itoa(i)
}

// ParseToken turns a button token back into an event. Only the transport
// boundary calls it.
func ParseToken(token string) (Event, bool) {
	if token == TokenStartQuiz {
		return StartQuizEvent(), true
	}
	digits, ok := strings.CutPrefix(token, answerPrefix)
	if !ok || digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return Event{}, false
	}
	i, err := strconv.Atoi(digits)
	if err != nil {
		return Event{}, false
	}
	return AnswerEvent(i), true
}
