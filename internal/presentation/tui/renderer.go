package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// Renderer formats run output for a terminal.
type Renderer struct {
	md *glamour.TermRenderer
}

// NewRenderer returns a renderer for w. Markdown styling is only applied
// when w is an interactive terminal.
func NewRenderer(w io.Writer) *Renderer {
	if !IsTerminal(w) {
		return &Renderer{}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return &Renderer{}
	}
	return &Renderer{md: r}
}

// IsTerminal reports whether w is a file attached to a TTY.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Markdown renders text, falling back to the raw input.
func (r *Renderer) Markdown(text string) string {
	if r.md == nil {
		return text
	}
	out, err := r.md.Render(text)
	if err != nil {
		return text
	}
	return out
}

// Result renders the outcome of a finished run.
func (r *Renderer) Result(state *domain.RunState) string {
	if state.IsCompleted {
		return r.Markdown(state.FinalAnswer)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Run %s ended in phase `%s`**\n\n", state.ChatID, state.CurrentPhase)
	if state.Failure != "" {
		fmt.Fprintf(&sb, "> %s\n", state.Failure)
	}
	return r.Markdown(sb.String())
}

// Trace renders one step diff as a compact line.
func (r *Renderer) Trace(d *domain.StateDiff) string {
	if d == nil {
		return ""
	}
	var parts []string
	if d.Phase != nil {
		parts = append(parts, "phase="+d.Phase.String())
	}
	if d.Iteration != nil {
		parts = append(parts, fmt.Sprintf("iteration=%d", *d.Iteration))
	}
	if d.Task != nil && *d.Task != "" {
		parts = append(parts, fmt.Sprintf("task=%q", *d.Task))
	}
	if d.Error != nil && *d.Error != "" {
		parts = append(parts, fmt.Sprintf("error=%q", *d.Error))
	}
	for _, u := range d.ToolsUsed {
		status := "ok"
		if !u.Success {
			status = "failed"
		}
		parts = append(parts, fmt.Sprintf("tool=%s(%s)", u.ToolName, status))
	}
	return "· " + strings.Join(parts, " ")
}
