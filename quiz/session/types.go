// Package session keeps per-user quiz progress and conversation state.
package session

import "errors"

// ErrNotFound is returned when a mutation targets a user without a session.
var ErrNotFound = errors.New("session: not found")

// State identifies the conversation step a user is in.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
	// StateAwaitingStart means the user was offered the start (or restart) button.
	StateAwaitingStart State = "awaiting_start"
	// StateAwaitingAnswer means a question is on screen and a session is active.
	StateAwaitingAnswer State = "awaiting_answer"
)

// Session is one user's progress through the catalog.
// Score never exceeds CurrentIndex.
type Session struct {
	CurrentIndex int
	Score        int
}

// Store owns sessions and conversation states keyed by Telegram user id.
//
// Operations for different users never wait on each other's Lock. Callers
// that need a consistent read-modify-write across several calls hold Lock
// for the duration.
type Store interface {
	Get(userID int64) (Session, bool)
	CreateOrReset(userID int64) Session
	Update(userID int64, fn func(*Session)) (Session, error)
	Clear(userID int64)

	State(userID int64) State
	SetState(userID int64, st State)

	// Lock serializes work for a single user and returns the unlock func.
	Lock(userID int64) func()
	// Active reports how many users currently hold a session.
	Active() int
}
