package conversation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jashwanth-1/AI-MCP/internal/domain"
)

func assistantCalling(ids ...string) domain.Message {
	m := domain.Message{Role: domain.RoleAssistant}
	for _, id := range ids {
		m.ToolCalls = append(m.ToolCalls, domain.ToolCall{ID: id, Name: "add", Arguments: `{"a":2,"b":3}`})
	}
	return m
}

func toolAnswer(id, text string) domain.Message {
	return domain.ToolMessage(domain.Succeeded(id, domain.ToolSuccess{Output: text}))
}

func roles(s *Store) []domain.Role {
	var out []domain.Role
	for _, m := range s.Snapshot() {
		out = append(out, m.Role)
	}
	return out
}

func TestNewSeedsSystemMessage(t *testing.T) {
	s := New("be helpful")

	msgs := s.Snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.RoleSystem, msgs[0].Role)
	assert.Equal(t, "be helpful", msgs[0].Content)
	assert.NotEmpty(t, msgs[0].ID)
	assert.False(t, msgs[0].Timestamp.IsZero())
}

func TestRoleSequenceForToolTurn(t *testing.T) {
	s := New("sys")

	require.NoError(t, s.Append(domain.UserMessage("What is 2+3?")))
	require.NoError(t, s.Append(assistantCalling("call_1")))
	require.NoError(t, s.Append(toolAnswer("call_1", "5")))
	require.NoError(t, s.Append(domain.Message{Role: domain.RoleAssistant, Content: "2+3 is 5."}))

	assert.Equal(t, []domain.Role{
		domain.RoleSystem, domain.RoleUser, domain.RoleAssistant, domain.RoleTool, domain.RoleAssistant,
	}, roles(s))
	assert.Equal(t, 0, len(s.outstanding))
}

func TestUnmatchedToolMessageIsRejected(t *testing.T) {
	s := New("sys")
	require.NoError(t, s.Append(domain.UserMessage("hi")))
	before := s.Snapshot()

	err := s.Append(toolAnswer("call_unknown", "5"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProtocol))

	var perr *domain.ProtocolError
	assert.True(t, errors.As(err, &perr))
	assert.Equal(t, before, s.Snapshot())
}

func TestToolCallAnsweredOnlyOnce(t *testing.T) {
	s := New("sys")
	require.NoError(t, s.Append(domain.UserMessage("hi")))
	require.NoError(t, s.Append(assistantCalling("call_1")))
	require.NoError(t, s.Append(toolAnswer("call_1", "5")))

	err := s.Append(toolAnswer("call_1", "5"))
	assert.ErrorIs(t, err, domain.ErrProtocol)
	assert.Equal(t, 4, s.Len())
}

func TestAssistantNormalisation(t *testing.T) {
	s := New("sys")
	require.NoError(t, s.Append(domain.UserMessage("hi")))

	require.NoError(t, s.Append(domain.Message{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{}}))
	last := s.Snapshot()[2]
	assert.Equal(t, "", last.Content)
	assert.Nil(t, last.ToolCalls)
	assert.NotEmpty(t, last.ID)
}

func TestAssistantToolCallIDs(t *testing.T) {
	s := New("sys")
	require.NoError(t, s.Append(domain.UserMessage("hi")))

	assert.ErrorIs(t, s.Append(assistantCalling("")), domain.ErrProtocol)
	assert.ErrorIs(t, s.Append(assistantCalling("a", "a")), domain.ErrProtocol)
	assert.Equal(t, 2, s.Len())
}

func TestMessagesBlockedWhileCallsOutstanding(t *testing.T) {
	s := New("sys")
	require.NoError(t, s.Append(domain.UserMessage("hi")))
	require.NoError(t, s.Append(assistantCalling("call_1", "call_2")))
	require.NoError(t, s.Append(toolAnswer("call_1", "5")))

	assert.ErrorIs(t, s.Append(domain.UserMessage("again")), domain.ErrProtocol)
	assert.ErrorIs(t, s.Append(domain.Message{Role: domain.RoleAssistant, Content: "x"}), domain.ErrProtocol)
	assert.Equal(t, 1, len(s.outstanding))

	require.NoError(t, s.Append(toolAnswer("call_2", "6")))
	require.NoError(t, s.Append(domain.Message{Role: domain.RoleAssistant, Content: "done"}))
}

func TestSystemAndUnknownRolesRejected(t *testing.T) {
	s := New("sys")
	assert.ErrorIs(t, s.Append(domain.SystemMessage("again")), domain.ErrProtocol)
	assert.ErrorIs(t, s.Append(domain.Message{Role: "robot", Content: "beep"}), domain.ErrProtocol)
	assert.Equal(t, 1, s.Len())
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := New("sys")
	require.NoError(t, s.Append(domain.UserMessage("hi")))
	require.NoError(t, s.Append(assistantCalling("call_1")))

	snap := s.Snapshot()
	snap[2].ToolCalls[0].Name = "tampered"
	snap[1].Content = "tampered"

	again := s.Snapshot()
	assert.Equal(t, "add", again[2].ToolCalls[0].Name)
	assert.Equal(t, "hi", again[1].Content)
}

func TestAppendDoesNotAliasCaller(t *testing.T) {
	s := New("sys")
	require.NoError(t, s.Append(domain.UserMessage("hi")))
	msg := assistantCalling("call_1")
	require.NoError(t, s.Append(msg))

	msg.ToolCalls[0].Name = "changed"
	assert.Equal(t, "add", s.Snapshot()[2].ToolCalls[0].Name)
}

func TestRollback(t *testing.T) {
	s := New("sys")
	require.NoError(t, s.Append(domain.UserMessage("first")))
	require.NoError(t, s.Append(domain.Message{Role: domain.RoleAssistant, Content: "ok"}))

	cp := s.Checkpoint()
	require.NoError(t, s.Append(domain.UserMessage("second")))
	require.NoError(t, s.Append(assistantCalling("call_9")))
	assert.Equal(t, 1, len(s.outstanding))

	removed, err := s.Rollback(cp)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 0, len(s.outstanding))

	require.NoError(t, s.Append(domain.UserMessage("retry")))
}

func TestRollbackRestoresOutstanding(t *testing.T) {
	s := New("sys")
	require.NoError(t, s.Append(domain.UserMessage("hi")))
	require.NoError(t, s.Append(assistantCalling("call_1", "call_2")))
	require.NoError(t, s.Append(toolAnswer("call_1", "5")))
	cp := s.Checkpoint()
	require.NoError(t, s.Append(toolAnswer("call_2", "6")))

	_, err := s.Rollback(cp)
	require.NoError(t, err)
	assert.Equal(t, 1, len(s.outstanding))
	require.NoError(t, s.Append(toolAnswer("call_2", "6")))
}

func TestRollbackBounds(t *testing.T) {
	s := New("sys")
	_, err := s.Rollback(0)
	assert.Error(t, err)
	_, err = s.Rollback(5)
	assert.Error(t, err)

	removed, err := s.Rollback(s.Checkpoint())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
