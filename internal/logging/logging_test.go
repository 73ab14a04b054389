package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func jsonLogger(buf *bytes.Buffer, component string) *Logger {
	base := slog.New(NewHandler(Options{Level: slog.LevelDebug, Format: FormatJSON, Output: buf}))
	return FromSlog(base, component)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var parsed map[string]any
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &parsed); err != nil {
		t.Fatalf("failed to decode %q: %v", line, err)
	}
	return parsed
}

func TestLoggerEmitsComponentAndExtra(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, "mcp").WithConversation("c-1")

	logger.Info("tools_listed", map[string]any{"count": 2})

	parsed := decodeLine(t, &buf)
	if parsed["msg"] != "tools_listed" {
		t.Errorf("expected msg tools_listed, got %v", parsed["msg"])
	}
	if parsed["component"] != "mcp" {
		t.Errorf("expected component mcp, got %v", parsed["component"])
	}
	if parsed["conversation"] != "c-1" {
		t.Errorf("expected conversation c-1, got %v", parsed["conversation"])
	}
	if parsed["count"] != float64(2) {
		t.Errorf("expected count 2, got %v", parsed["count"])
	}
}

func TestLoggerErrorCarriesErr(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf, "gateway").Error("request_failed", nil, errors.New("status 500"))

	parsed := decodeLine(t, &buf)
	if parsed["level"] != "ERROR" {
		t.Errorf("expected ERROR level, got %v", parsed["level"])
	}
	if parsed["err"] != "status 500" {
		t.Errorf("expected err field, got %v", parsed["err"])
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(NewHandler(Options{Level: slog.LevelWarn, Format: FormatJSON, Output: &buf}))
	logger := FromSlog(base, "agent")

	logger.Debug("hidden", nil)
	logger.Info("hidden", nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %q", buf.String())
	}

	logger.Warn("shown", nil, nil)
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn event, got %q", buf.String())
	}
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := jsonLogger(&buf, "agent")
	_ = parent.With("turn", "t-1")

	parent.Info("plain", nil)
	if strings.Contains(buf.String(), "t-1") {
		t.Errorf("parent logger picked up child attribute: %q", buf.String())
	}
}

func TestTimedEvent(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf, "agent").TimedEvent("turn_done", time.Now().Add(-50*time.Millisecond), nil)

	parsed := decodeLine(t, &buf)
	ms, ok := parsed["duration_ms"].(float64)
	if !ok || ms < 50 {
		t.Errorf("expected duration_ms >= 50, got %v", parsed["duration_ms"])
	}
}

func TestTextHandlerNoColor(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(NewHandler(Options{Level: slog.LevelInfo, Output: &buf, NoColor: true}))
	FromSlog(base, "chat").Info("ready", nil)

	out := buf.String()
	if !strings.Contains(out, "ready") || !strings.Contains(out, "component=chat") {
		t.Errorf("unexpected text output %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("expected no ANSI escapes, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSanitizeArgs(t *testing.T) {
	long := strings.Repeat("x", 300)
	got := SanitizeArgs(map[string]any{"api_key": "abc", "query": long, "n": 3})

	if got["api_key"] != "[REDACTED]" {
		t.Errorf("expected redaction, got %v", got["api_key"])
	}
	if s := got["query"].(string); len(s) != 200 || !strings.HasSuffix(s, "...") {
		t.Errorf("expected truncated query, got len %d", len(s))
	}
	if got["n"] != 3 {
		t.Errorf("expected n untouched, got %v", got["n"])
	}
	if SanitizeArgs(nil) != nil {
		t.Error("expected nil for nil input")
	}
}

func TestTruncate(t *testing.T) {
	if Truncate("short", 10) != "short" {
		t.Error("short string should be unchanged")
	}
	if got := Truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("expected abc..., got %q", got)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{strings.Repeat("é", 10), 8, "éé..."},
		{strings.Repeat("é", 10), 2, "é"},
		{"日本語", 2, ""},
		{"ab日本語", 7, "ab..."},
	}
	for _, tc := range cases {
		got := Truncate(tc.in, tc.n)
		if got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("Truncate(%q, %d) produced invalid UTF-8", tc.in, tc.n)
		}
	}

	got := SanitizeArgs(map[string]any{"query": strings.Repeat("日", 100)})["query"].(string)
	if !utf8.ValidString(got) || len(got) > 200 || !strings.HasSuffix(got, "...") {
		t.Errorf("expected valid truncated query, got %q", got)
	}
}
