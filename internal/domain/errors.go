package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every typed error below unwraps to one of these so callers
// can branch with errors.Is without knowing the concrete type.
var (
	ErrConnection        = errors.New("tool host connection failed")
	ErrTransport         = errors.New("tool host transport failed")
	ErrToolNotFound      = errors.New("tool not found")
	ErrToolExecution     = errors.New("tool execution failed")
	ErrArgumentParse     = errors.New("invalid tool arguments")
	ErrGateway           = errors.New("model gateway failed")
	ErrProtocol          = errors.New("conversation protocol violation")
	ErrToolLoopExceeded  = errors.New("tool loop exceeded")
	ErrSessionState      = errors.New("tool session not initialized")
	ErrMissingCredential = errors.New("missing model credential")
)

// ConnectionError reports that the tool host could not be started or did not
// complete the handshake.
type ConnectionError struct {
	Command string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("connect tool host: %v", e.Err)
	}
	return fmt.Sprintf("connect tool host %q: %v", e.Command, e.Err)
}

func (e *ConnectionError) Unwrap() []error { return []error{ErrConnection, e.Err} }

// TransportError reports that the stream to the tool host broke while a
// request was in flight or before it could be sent.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("tool host %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// ToolNotFoundError reports a call to a name missing from the catalog.
type ToolNotFoundError struct {
	Name        string
	Suggestions []string
}

func (e *ToolNotFoundError) Error() string {
	msg := fmt.Sprintf("tool %q not found", e.Name)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf("; did you mean %s?", strings.Join(quoteAll(e.Suggestions), ", "))
	}
	return msg
}

func (e *ToolNotFoundError) Unwrap() error { return ErrToolNotFound }

// ToolExecutionError reports that the tool host signalled failure.
type ToolExecutionError struct {
	Name    string
	Message string
	Err     error
}

func (e *ToolExecutionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("tool %q failed: %s", e.Name, e.Message)
	}
	return fmt.Sprintf("tool %q failed: %v", e.Name, e.Err)
}

func (e *ToolExecutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrToolExecution}
	}
	return []error{ErrToolExecution, e.Err}
}

// ArgumentParseError reports tool arguments that are not a JSON object.
type ArgumentParseError struct {
	Tool string
	Raw  string
	Err  error
}

func (e *ArgumentParseError) Error() string {
	return fmt.Sprintf("arguments for %q are not a valid JSON object: %v", e.Tool, e.Err)
}

func (e *ArgumentParseError) Unwrap() []error { return []error{ErrArgumentParse, e.Err} }

// GatewayError reports a failed model request: transport failure, timeout,
// non-2xx status or a malformed body.
type GatewayError struct {
	StatusCode int
	Body       string
	Reason     string
	Err        error
}

func (e *GatewayError) Error() string {
	var sb strings.Builder
	sb.WriteString("model gateway")
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, ": status %d", e.StatusCode)
	}
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	if e.Body != "" {
		fmt.Fprintf(&sb, " (%s)", e.Body)
	}
	return sb.String()
}

func (e *GatewayError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrGateway}
	}
	return []error{ErrGateway, e.Err}
}

// Retryable reports whether repeating the same request may succeed.
func (e *GatewayError) Retryable() bool {
	switch {
	case e.StatusCode == 429, e.StatusCode >= 500:
		return true
	case e.StatusCode == 0 && e.Err != nil:
		return true
	}
	return false
}

// ProtocolError reports a message that would break the conversation's
// tool-call ordering.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "protocol: " + e.Reason }

func (e *ProtocolError) Unwrap() error { return ErrProtocol }

// ToolLoopExceededError reports a turn that kept requesting tools past the
// iteration bound.
type ToolLoopExceededError struct {
	Limit int
}

func (e *ToolLoopExceededError) Error() string {
	return fmt.Sprintf("model still requesting tools after %d iterations", e.Limit)
}

func (e *ToolLoopExceededError) Unwrap() error { return ErrToolLoopExceeded }

// StateError reports a tool session operation attempted in the wrong state.
type StateError struct {
	Op    string
	State string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("tool session %s: invalid in state %s", e.Op, e.State)
}

func (e *StateError) Unwrap() error { return ErrSessionState }

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%q", n)
	}
	return out
}
