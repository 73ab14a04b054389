// Package render formats chat output for the terminal.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/Jashwanth-1/AI-MCP/internal/domain"
	"github.com/Jashwanth-1/AI-MCP/internal/logging"
)

const (
	// Prompt is printed before each line of user input.
	Prompt = ">> "

	resultPreview = 200
)

// Renderer handles output formatting.
//
// With pretty off every method returns plain, uncolored text suitable for
// pipes and logs.
type Renderer struct {
	pretty bool
}

// New creates a new renderer.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// Pretty reports whether decorated output is enabled.
func (r *Renderer) Pretty() bool {
	return r.pretty
}

// Banner formats the tool catalog announced after the tool host connects.
func (r *Renderer) Banner(server string, tools []domain.ToolDescriptor) string {
	var sb strings.Builder

	title := "Available tools:"
	if server != "" {
		title = fmt.Sprintf("Connected to %s. Available tools:", server)
	}

	if r.pretty {
		sb.WriteString(color.CyanString(title) + "\n")
		if len(tools) == 0 {
			sb.WriteString(color.HiBlackString("  (none)") + "\n")
			return sb.String()
		}
		sb.WriteString(ToolTable(tools) + "\n")
		return sb.String()
	}

	sb.WriteString(title + "\n")
	sb.WriteString(r.Tools(tools))
	return sb.String()
}

// Tools lists the catalog one tool per line as "name: description".
func (r *Renderer) Tools(tools []domain.ToolDescriptor) string {
	if len(tools) == 0 {
		return "  (none)\n"
	}

	var sb strings.Builder
	for _, t := range tools {
		name := t.Name
		if r.pretty {
			name = color.GreenString(t.Name)
		}
		if t.Description == "" {
			fmt.Fprintf(&sb, "  - %s\n", name)
			continue
		}
		fmt.Fprintf(&sb, "  - %s: %s\n", name, firstLine(t.Description))
	}
	return sb.String()
}

// Prompt returns the input prompt.
func (r *Renderer) Prompt() string {
	if r.pretty {
		return color.CyanString(Prompt)
	}
	return Prompt
}

// Answer formats the final assistant reply of a turn.
func (r *Renderer) Answer(text string) string {
	if r.pretty {
		return fmt.Sprintf("%s %s\n\n", color.MagentaString("Assistant:"), text)
	}
	return fmt.Sprintf("Assistant: %s\n\n", text)
}

// ToolCall formats a tool invocation about to be dispatched.
func (r *Renderer) ToolCall(call domain.ToolCall) string {
	args := strings.TrimSpace(call.Arguments)
	if args == "" {
		args = "{}"
	}
	args = logging.Truncate(args, resultPreview)

	if r.pretty {
		return fmt.Sprintf("  %s %s %s\n", color.BlueString("→"), color.New(color.Bold).Sprint(call.Name), color.HiBlackString(args))
	}
	return fmt.Sprintf("  -> %s %s\n", call.Name, args)
}

// ToolResult formats the outcome of a dispatched tool call.
func (r *Renderer) ToolResult(call domain.ToolCall, result domain.ToolResult, d time.Duration) string {
	text := logging.Truncate(oneLine(result.Text()), resultPreview)

	dur := ""
	if d > 0 {
		dur = " (" + FormatDuration(d) + ")"
	}

	if r.pretty {
		status := color.GreenString("✓")
		if result.IsError() {
			status = color.RedString("✗")
			text = color.RedString(text)
		}
		return fmt.Sprintf("  %s %s%s %s\n", status, call.Name, color.HiBlackString(dur), text)
	}

	status := "ok"
	if result.IsError() {
		status = "failed"
	}
	return fmt.Sprintf("  <- %s %s%s: %s\n", call.Name, status, dur, text)
}

// Error formats an error that ended a turn.
func (r *Renderer) Error(err error) string {
	if err == nil {
		return ""
	}
	if r.pretty {
		return fmt.Sprintf("%s %v\n\n", color.RedString("Error:"), err)
	}
	return fmt.Sprintf("Error: %v\n\n", err)
}

// Goodbye is printed when the user leaves the chat.
func (r *Renderer) Goodbye() string {
	if r.pretty {
		return color.HiBlackString("Exiting the chat...") + "\n"
	}
	return "Exiting the chat...\n"
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
