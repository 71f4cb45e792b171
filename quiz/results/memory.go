package results

import (
	"context"
	"sort"
	"sync"
)

type memoryStore struct {
	mu   sync.RWMutex
	runs map[int64][]Result
}

// NewMemoryStore keeps results in process memory. Nothing survives a restart.
func NewMemoryStore() Store {
	return &memoryStore{runs: make(map[int64][]Result)}
}

func (m *memoryStore) Record(_ context.Context, r Result) error {
	if err := r.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[r.UserID] = append(m.runs[r.UserID], r)
	return nil
}

func (m *memoryStore) UserStats(_ context.Context, userID int64) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := m.runs[userID]
	if len(runs) == 0 {
		return Stats{}, ErrNoResults
	}
	st := Stats{Runs: len(runs), Best: runs[0], Last: runs[0]}
	for _, r := range runs[1:] {
		if better(r, st.Best) {
			st.Best = r
		}
		if !r.FinishedAt.Before(st.Last.FinishedAt) {
			st.Last = r
		}
	}
	return st, nil
}

func (m *memoryStore) Top(_ context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	best := make([]Result, 0, len(m.runs))
	for _, runs := range m.runs {
		top := runs[0]
		for _, r := range runs[1:] {
			if better(r, top) {
				top = r
			}
		}
		best = append(best, top)
	}
	m.mu.RUnlock()

	sort.Slice(best, func(i, j int) bool { return better(best[i], best[j]) })
	if len(best) > limit {
		best = best[:limit]
	}
	return best, nil
}
