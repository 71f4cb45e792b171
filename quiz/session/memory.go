package session

import "sync"

type entry struct {
	// turn is held by Lock for a whole event.
	turn sync.Mutex

	mu      sync.Mutex
	state   State
	session *Session
}

type memoryStore struct {
	mu      sync.RWMutex
	entries map[int64]*entry
}

// NewMemoryStore constructs the in-memory Store. Nothing survives a restart.
func NewMemoryStore() Store {
	return &memoryStore{
		entries: make(map[int64]*entry),
	}
}

func (m *memoryStore) lookup(userID int64) (*entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[userID]
	return e, ok
}

func (m *memoryStore) ensure(userID int64) *entry {
	if e, ok := m.lookup(userID); ok {
		return e
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	if !ok {
		e = &entry{state: StateIdle}
		m.entries[userID] = e
	}
	return e
}

// Get returns a copy of the user's session if one exists.
func (m *memoryStore) Get(userID int64) (Session, bool) {
	e, ok := m.lookup(userID)
	if !ok {
		return Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return Session{}, false
	}
	return *e.session, true
}

// CreateOrReset replaces any existing session with a fresh one.
func (m *memoryStore) CreateOrReset(userID int64) Session {
	e := m.ensure(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = &Session{}
	return *e.session
}

// Update applies fn to the stored session and returns the result.
func (m *memoryStore) Update(userID int64, fn func(*Session)) (Session, error) {
	e, ok := m.lookup(userID)
	if !ok {
		return Session{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return Session{}, ErrNotFound
	}
	next := *e.session
	fn(&next)
	e.session = &next
	return next, nil
}

// Clear removes the user's session. Clearing an absent session is a no-op.
func (m *memoryStore) Clear(userID int64) {
	e, ok := m.lookup(userID)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = nil
}

// State returns the conversation state, or StateIdle for unknown users.
func (m *memoryStore) State(userID int64) State {
	e, ok := m.lookup(userID)
	if !ok {
		return StateIdle
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetState records the conversation state for the user.
func (m *memoryStore) SetState(userID int64, st State) {
	e := m.ensure(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = st
}

// Lock blocks until no other event for userID is in progress.
func (m *memoryStore) Lock(userID int64) func() {
	e := m.ensure(userID)
	e.turn.Lock()
	return e.turn.Unlock
}

// Active counts users with a live session.
func (m *memoryStore) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.entries {
		e.mu.Lock()
		if e.session != nil {
			n++
		}
		e.mu.Unlock()
	}
	return n
}
