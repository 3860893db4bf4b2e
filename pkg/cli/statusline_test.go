package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestStatusLine_Render(t *testing.T) {
	s := NewStatusLine(&bytes.Buffer{}, DefaultTheme, 0)
	line := s.Render([]Field{
		{Label: "elapsed", Value: "1:05"},
		{Label: "phase", Value: "technical"},
		{Value: "fallback", Highlight: true},
	})
	for _, want := range []string{"elapsed:", "1:05", "phase:", "technical", "fallback", "│"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestStatusLine_Truncates(t *testing.T) {
	s := NewStatusLine(&bytes.Buffer{}, DefaultTheme, 20)
	line := s.Render([]Field{{Label: "transcript", Value: strings.Repeat("x", 80)}})
	if w := lipgloss.Width(line); w > 20 {
		t.Errorf("width = %d, want <= 20", w)
	}
}

func TestStatusLine_WriteKeepsLineAtBottom(t *testing.T) {
	var out bytes.Buffer
	s := NewStatusLine(&out, DefaultTheme, 0)

	s.Write([]byte("before any status\n"))
	if out.String() != "before any status\n" {
		t.Fatalf("write without a status line = %q", out.String())
	}

	out.Reset()
	s.Update(Field{Label: "elapsed", Value: "0:01"})
	if !strings.HasPrefix(out.String(), "\r\x1b[2K") {
		t.Fatalf("Update should clear the line first: %q", out.String())
	}

	out.Reset()
	n, err := s.Write([]byte("level=WARN msg=x"))
	if err != nil || n != len("level=WARN msg=x") {
		t.Fatalf("Write = %d, %v", n, err)
	}
	got := out.String()
	logAt := strings.Index(got, "level=WARN msg=x\n")
	statusAt := strings.LastIndex(got, "elapsed:")
	if logAt < 0 || statusAt < logAt {
		t.Fatalf("log line should be printed above the redrawn status: %q", got)
	}

	out.Reset()
	s.Clear()
	s.Clear()
	if out.String() != "\r\x1b[2K" {
		t.Fatalf("Clear = %q", out.String())
	}
	out.Reset()
	s.Write([]byte("after\n"))
	if out.String() != "after\n" {
		t.Fatalf("write after Clear = %q", out.String())
	}
}
