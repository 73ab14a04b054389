// Package toolschema converts tool host descriptors to and from the
// function-calling schema advertised to the model.
package toolschema

import (
	"encoding/json"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Jashwanth-1/AI-MCP/internal/domain"
)

// EmptyParameters is the schema given to host tools that declare no input
// schema at all.
var EmptyParameters = json.RawMessage(`{"type":"object","properties":{}}`)

// Tool is one entry of the request's "tools" array.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function is the callable part of a Tool.
type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// FromDescriptor builds the function-calling entry for d. The input schema
// is passed through byte for byte.
func FromDescriptor(d domain.ToolDescriptor) Tool {
	return Tool{
		Type: "function",
		Function: Function{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  append(json.RawMessage(nil), d.InputSchema...),
		},
	}
}

// FromDescriptors converts a catalog, keeping its order.
func FromDescriptors(ds []domain.ToolDescriptor) []Tool {
	if len(ds) == 0 {
		return nil
	}
	out := make([]Tool, len(ds))
	for i, d := range ds {
		out[i] = FromDescriptor(d)
	}
	return out
}

// ToDescriptor is the inverse of FromDescriptor.
func ToDescriptor(t Tool) domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        t.Function.Name,
		Description: t.Function.Description,
		InputSchema: append(json.RawMessage(nil), t.Function.Parameters...),
	}
}

// Filter keeps the descriptors whose names match at least one glob pattern.
// An empty pattern list keeps everything.
func Filter(ds []domain.ToolDescriptor, patterns []string) ([]domain.ToolDescriptor, error) {
	if len(patterns) == 0 {
		return ds, nil
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid tool pattern %q", p)
		}
	}

	out := make([]domain.ToolDescriptor, 0, len(ds))
	for _, d := range ds {
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, d.Name); ok {
				out = append(out, d)
				break
			}
		}
	}
	return out, nil
}
