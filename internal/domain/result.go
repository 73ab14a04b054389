package domain

import (
	"encoding/json"
	"fmt"
)

// ToolResult is the outcome of one tool call, keyed by the id of the call.
type ToolResult struct {
	CallID  string  `json:"callId"`
	Outcome Outcome `json:"-"`
}

// Outcome is either a ToolSuccess or a ToolFailure. The set is closed: the
// unexported marker method keeps other packages from adding variants.
type Outcome interface {
	outcome()
	// Text renders the outcome as the content sent back to the model.
	Text() string
}

// ToolSuccess carries the data a tool returned.
type ToolSuccess struct {
	Output     string          `json:"output"`
	Structured json.RawMessage `json:"structured,omitempty"`
}

func (ToolSuccess) outcome() {}

func (s ToolSuccess) Text() string {
	if s.Output == "" && len(s.Structured) > 0 {
		return string(s.Structured)
	}
	return s.Output
}

// FailureKind classifies a recovered tool failure.
type FailureKind string

const (
	FailureArguments FailureKind = "invalid_arguments"
	FailureNotFound  FailureKind = "tool_not_found"
	FailureExecution FailureKind = "execution_failed"
	FailureBlocked   FailureKind = "blocked"
)

// ToolFailure describes a tool call that did not produce data. The model
// sees it as an ordinary tool message and may react to it.
type ToolFailure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (ToolFailure) outcome() {}

func (f ToolFailure) Text() string {
	return fmt.Sprintf("error (%s): %s", f.Kind, f.Message)
}

// Succeeded builds a successful result for callID.
func Succeeded(callID string, s ToolSuccess) ToolResult {
	return ToolResult{CallID: callID, Outcome: s}
}

// Failed builds a failed result for callID.
func Failed(callID string, kind FailureKind, err error) ToolResult {
	return ToolResult{CallID: callID, Outcome: ToolFailure{Kind: kind, Message: err.Error()}}
}

// Text renders the outcome, or an empty string for a zero result.
func (r ToolResult) Text() string {
	if r.Outcome == nil {
		return ""
	}
	return r.Outcome.Text()
}

// IsError reports whether the result is a ToolFailure.
func (r ToolResult) IsError() bool {
	_, ok := r.Outcome.(ToolFailure)
	return ok
}

func (r ToolResult) clone() ToolResult {
	if s, ok := r.Outcome.(ToolSuccess); ok && s.Structured != nil {
		s.Structured = append(json.RawMessage(nil), s.Structured...)
		r.Outcome = s
	}
	return r
}

type resultJSON struct {
	CallID  string       `json:"callId"`
	Success *ToolSuccess `json:"success,omitempty"`
	Failure *ToolFailure `json:"failure,omitempty"`
}

// MarshalJSON tags the outcome variant so transcripts stay unambiguous.
func (r ToolResult) MarshalJSON() ([]byte, error) {
	w := resultJSON{CallID: r.CallID}
	switch o := r.Outcome.(type) {
	case ToolSuccess:
		w.Success = &o
	case ToolFailure:
		w.Failure = &o
	case nil:
	default:
		return nil, fmt.Errorf("unknown outcome type: %T", o)
	}
	return json.Marshal(w)
}

// UnmarshalJSON restores the tagged outcome variant.
func (r *ToolResult) UnmarshalJSON(data []byte) error {
	var w resultJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.CallID = w.CallID
	switch {
	case w.Success != nil && w.Failure != nil:
		return fmt.Errorf("tool result %q has both success and failure", w.CallID)
	case w.Success != nil:
		r.Outcome = *w.Success
	case w.Failure != nil:
		r.Outcome = *w.Failure
	default:
		r.Outcome = nil
	}
	return nil
}
