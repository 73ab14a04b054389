// Package conversation holds the ordered message log of one dialogue.
package conversation

import (
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Jashwanth-1/AI-MCP/internal/domain"
)

// Checkpoint marks a position in the log that Rollback can return to.
type Checkpoint int

// Store is an append-only message log that enforces tool-call ordering:
// every tool message answers a call made by an earlier assistant message
// that has not been answered yet. A Store is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	messages    []domain.Message
	outstanding map[string]bool
	now         func() time.Time
}

// New creates a store seeded with a single system message.
func New(systemPrompt string) *Store {
	s := &Store{outstanding: make(map[string]bool), now: time.Now}
	sys := domain.SystemMessage(systemPrompt)
	s.stamp(&sys)
	s.messages = []domain.Message{sys}
	return s
}

func (s *Store) stamp(m *domain.Message) {
	m.ID = ulid.Make().String()
	m.Timestamp = s.now().UTC()
}

// Append validates msg against the log and adds it. A rejected message
// leaves the store unchanged.
func (s *Store) Append(msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !msg.Role.Valid() {
		return &domain.ProtocolError{Reason: fmt.Sprintf("unknown role %q", msg.Role)}
	}
	m := msg.Clone()
	switch m.Role {
	case domain.RoleSystem:
		return &domain.ProtocolError{Reason: "system message after the conversation started"}

	case domain.RoleUser:
		if err := s.requireAnswered(m.Role); err != nil {
			return err
		}
		m.ToolCallID, m.ToolCalls, m.Result = "", nil, nil

	case domain.RoleAssistant:
		if err := s.requireAnswered(m.Role); err != nil {
			return err
		}
		seen := make(map[string]bool, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			if tc.ID == "" {
				return &domain.ProtocolError{Reason: fmt.Sprintf("tool call to %q has no id", tc.Name)}
			}
			if seen[tc.ID] {
				return &domain.ProtocolError{Reason: fmt.Sprintf("tool call id %q repeated", tc.ID)}
			}
			seen[tc.ID] = true
		}
		m.ToolCallID, m.Result = "", nil
		if len(m.ToolCalls) == 0 {
			m.ToolCalls = nil
		}
		for id := range seen {
			s.outstanding[id] = true
		}

	case domain.RoleTool:
		if m.ToolCallID == "" {
			return &domain.ProtocolError{Reason: "tool message without a tool call id"}
		}
		if !s.outstanding[m.ToolCallID] {
			return &domain.ProtocolError{Reason: fmt.Sprintf("tool message answers unknown or already answered call %q", m.ToolCallID)}
		}
		delete(s.outstanding, m.ToolCallID)
		m.ToolCalls = nil
	}

	s.stamp(&m)
	s.messages = append(s.messages, m)
	return nil
}

func (s *Store) requireAnswered(role domain.Role) error {
	if len(s.outstanding) == 0 {
		return nil
	}
	return &domain.ProtocolError{
		Reason: fmt.Sprintf("%s message while %d tool call(s) are unanswered", role, len(s.outstanding)),
	}
}

// Snapshot returns a deep copy of the log in order.
func (s *Store) Snapshot() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of stored messages
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Checkpoint returns the current end of the log.
func (s *Store) Checkpoint() Checkpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Checkpoint(len(s.messages))
}

// Rollback discards every message appended after cp. It returns the number
// of messages removed.
func (s *Store) Rollback(cp Checkpoint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int(cp)
	if n < 1 || n > len(s.messages) {
		return 0, fmt.Errorf("rollback to %d: log has %d messages", n, len(s.messages))
	}
	removed := len(s.messages) - n
	for i := n; i < len(s.messages); i++ {
		s.messages[i] = domain.Message{}
	}
	s.messages = s.messages[:n]

	s.outstanding = make(map[string]bool)
	for _, m := range s.messages {
		switch m.Role {
		case domain.RoleAssistant:
			for _, tc := range m.ToolCalls {
				s.outstanding[tc.ID] = true
			}
		case domain.RoleTool:
			delete(s.outstanding, m.ToolCallID)
		}
	}
	return removed, nil
}
