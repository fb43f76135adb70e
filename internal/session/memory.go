package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in-process. It is the default backend for the
// long-poll mode; state does not survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]Session)}
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSession(s.sessions[userID]), nil
}

func (s *MemoryStore) Put(_ context.Context, userID int64, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = cloneSession(sess)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

// cloneSession copies the mutable fields so callers cannot alias the stored
// record.
func cloneSession(in Session) Session {
	out := Session{Credential: in.Credential}
	if in.Overrides != nil {
		out.Overrides = make(map[string]string, len(in.Overrides))
		for k, v := range in.Overrides {
			out.Overrides[k] = v
		}
	}
	if in.History != nil {
		out.History = append([]Turn(nil), in.History...)
	}
	return out
}
