package cli

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colors of the status line.
type Theme struct {
	Primary lipgloss.Color // labels and the leading marker
	Alert   lipgloss.Color // highlighted values
	Dim     lipgloss.Color // separators
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Alert:   lipgloss.Color("#ffb86c"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Marker    lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Highlight lipgloss.Style
	Separator lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Marker:    lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:     lipgloss.NewStyle().Foreground(t.Primary),
		Value:     lipgloss.NewStyle(),
		Highlight: lipgloss.NewStyle().Bold(true).Foreground(t.Alert),
		Separator: lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Field is one label/value pair of the status line.
type Field struct {
	Label     string
	Value     string
	Highlight bool
}

// StatusLine keeps a single self-overwriting line at the bottom of a
// terminal. It is also an io.Writer: log output written through it is
// printed above the line, which is then redrawn.
type StatusLine struct {
	w      io.Writer
	styles Styles
	width  int

	mu      sync.Mutex
	current string
}

// NewStatusLine returns a StatusLine drawing on w. width truncates the
// rendered line when positive.
func NewStatusLine(w io.Writer, t Theme, width int) *StatusLine {
	return &StatusLine{w: w, styles: NewStyles(t), width: width}
}

// Render formats fields without drawing them.
func (s *StatusLine) Render(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		v := s.styles.Value.Render(f.Value)
		if f.Highlight {
			v = s.styles.Highlight.Render(f.Value)
		}
		if f.Label == "" {
			parts = append(parts, v)
			continue
		}
		parts = append(parts, s.styles.Label.Render(f.Label+":")+" "+v)
	}
	line := s.styles.Marker.Render("●") + " " + strings.Join(parts, s.styles.Separator.Render(" │ "))
	if s.width > 0 && lipgloss.Width(line) > s.width {
		line = lipgloss.NewStyle().MaxWidth(s.width).Render(line)
	}
	return line
}

// Update redraws the line with fields.
func (s *StatusLine) Update(fields ...Field) {
	line := s.Render(fields)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = line
	io.WriteString(s.w, "\r\x1b[2K"+line)
}

// Clear erases the line and stops redrawing it after writes.
func (s *StatusLine) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == "" {
		return
	}
	s.current = ""
	io.WriteString(s.w, "\r\x1b[2K")
}

// Write prints p above the status line.
func (s *StatusLine) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == "" {
		return s.w.Write(p)
	}
	var buf bytes.Buffer
	buf.WriteString("\r\x1b[2K")
	buf.Write(p)
	if len(p) > 0 && p[len(p)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString(s.current)
	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}
