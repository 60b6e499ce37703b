package dashboard

import (
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"cuipo/internal/cache"
)

// WorkingSet holds the latest result of each operation for one session.
// It is never modified after being stored; updates store a new copy.
type WorkingSet struct {
	Results   map[Operation]Result
	UpdatedAt time.Time
}

// Result returns the stored result of op.
func (w WorkingSet) Result(op Operation) (Result, bool) {
	r, ok := w.Results[op]
	return r, ok
}

// Sessions keeps working sets keyed by session ID in a bounded store.
type Sessions struct {
	mu    sync.Mutex
	store cache.Cache[WorkingSet]
	now   cache.Clock
}

func NewSessions(store cache.Cache[WorkingSet]) *Sessions {
	return &Sessions{store: store, now: time.Now}
}

// NewID returns a fresh session identifier.
func (s *Sessions) NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like an identifier issued by NewID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Sessions) Get(id string) (WorkingSet, bool) {
	return s.store.Get(id)
}

// Put replaces the result of r.Operation in the session's working set.
func (s *Sessions) Put(id string, r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := WorkingSet{Results: map[Operation]Result{}, UpdatedAt: s.now()}
	if cur, ok := s.store.Get(id); ok && cur.Results != nil {
		next.Results = maps.Clone(cur.Results)
	}
	next.Results[r.Operation] = r
	s.store.Set(id, next)
}

// Drop forgets a session.
func (s *Sessions) Drop(id string) {
	s.store.Delete(id)
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	return s.store.Size()
}
