package provider

import (
	"encoding/json"
	"strings"
)

// ToolChoice controls whether the model may, must not, or must call a
// particular tool. The zero value is "auto".
type ToolChoice struct {
	mode     string
	function string
}

var (
	ToolChoiceAuto = ToolChoice{mode: "auto"}
	ToolChoiceNone = ToolChoice{mode: "none"}
)

// ForceTool requires the model to call the named function.
func ForceTool(name string) ToolChoice {
	return ToolChoice{mode: "function", function: name}
}

// ParseToolChoice reads "auto", "none", or a function name.
func ParseToolChoice(s string) ToolChoice {
	switch strings.TrimSpace(s) {
	case "", "auto":
		return ToolChoiceAuto
	case "none":
		return ToolChoiceNone
	default:
		return ForceTool(strings.TrimSpace(s))
	}
}

// Function returns the forced function name, or "" for auto and none.
func (c ToolChoice) Function() string { return c.function }

func (c ToolChoice) String() string {
	switch c.mode {
	case "function":
		return c.function
	case "":
		return "auto"
	default:
		return c.mode
	}
}

func (c ToolChoice) MarshalJSON() ([]byte, error) {
	if c.mode == "function" {
		return json.Marshal(map[string]any{
			"type":     "function",
			"function": map[string]string{"name": c.function},
		})
	}
	return json.Marshal(c.String())
}
