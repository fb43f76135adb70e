// Package session holds the per-user conversation record and its
// persistence contract.
package session

import "context"

// Turn is one conversation entry. Roles are llm.RoleUser and
// llm.RoleAssistant; the respond flow always appends user then assistant, so
// the history never gains two consecutive same-role turns.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the full per-user record: optional API credential, runtime
// override mapping (model/temperature/top_p) and the conversation history.
type Session struct {
	Credential string            `json:"credential,omitempty"`
	Overrides  map[string]string `json:"overrides,omitempty"`
	History    []Turn            `json:"history,omitempty"`
}

// SetOverride writes one override key, allocating the map on first use.
func (s *Session) SetOverride(key, value string) {
	if s.Overrides == nil {
		s.Overrides = make(map[string]string)
	}
	s.Overrides[key] = value
}

// PopTrailingAssistantTurns discards trailing non-user turns, restoring the
// history to end on a user turn so the last exchange can be regenerated.
func (s *Session) PopTrailingAssistantTurns() {
	for len(s.History) > 0 && s.History[len(s.History)-1].Role != "user" {
		s.History = s.History[:len(s.History)-1]
	}
}

// Store persists sessions keyed by Telegram user id. Get returns a zero
// session when no record exists. Writes are last-writer-wins per user id.
type Store interface {
	Get(ctx context.Context, userID int64) (Session, error)
	Put(ctx context.Context, userID int64, s Session) error
	Delete(ctx context.Context, userID int64) error
}
