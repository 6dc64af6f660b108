// Package termrender draws snippet render states on a terminal.
package termrender

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/jonwraymond/snippetrun/result"
	"github.com/jonwraymond/snippetrun/snippet"
)

// PendingText is shown while a run is in flight.
const PendingText = "running..."

// Options configures a Renderer.
type Options struct {
	// ShowExitCode prints the exit status under failed results.
	ShowExitCode bool

	// HideCode prints only the header and result, not the displayed code.
	HideCode bool
}

// Renderer writes render states to a terminal. Colors adapt to the writer;
// non-terminal writers get plain text.
//
// Contract:
// - Concurrency: safe for concurrent use; each state is written atomically.
type Renderer struct {
	mu   sync.Mutex
	out  io.Writer
	opts Options

	header  lipgloss.Style
	code    lipgloss.Style
	pending lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	exit    lipgloss.Style
}

// New creates a Renderer writing to w.
func New(w io.Writer, opts Options) *Renderer {
	lr := lipgloss.NewRenderer(w)
	return &Renderer{
		out:     w,
		opts:    opts,
		header:  lr.NewStyle().Bold(true),
		code:    lr.NewStyle().PaddingLeft(2),
		pending: lr.NewStyle().Faint(true),
		success: lr.NewStyle().Foreground(lipgloss.Color("2")),
		failure: lr.NewStyle().Foreground(lipgloss.Color("1")),
		exit:    lr.NewStyle().Foreground(lipgloss.Color("1")).Italic(true),
	}
}

// Func returns a snippet.RenderFunc bound to this renderer.
func (r *Renderer) Func() snippet.RenderFunc {
	return r.Render
}

// Render writes one state.
func (r *Renderer) Render(s snippet.RenderState) {
	text := r.Format(s)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = io.WriteString(r.out, text)
}

// Format returns the text Render would write for s.
func (r *Renderer) Format(s snippet.RenderState) string {
	var b strings.Builder

	b.WriteString(r.header.Render(headerLine(s)))
	b.WriteString("\n")

	if !r.opts.HideCode {
		b.WriteString(r.code.Render(s.DisplayedCode))
		b.WriteString("\n")
	}

	switch {
	case s.Running:
		b.WriteString(r.pending.Render(PendingText))
		b.WriteString("\n")
	case s.Result != nil:
		b.WriteString(r.resultText(*s.Result))
		b.WriteString("\n")
		if r.opts.ShowExitCode && s.Outcome != nil {
			if line := result.ExitCodeLine(*s.Outcome); line != "" {
				b.WriteString(r.exit.Render(line))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func (r *Renderer) resultText(c result.Classification) string {
	if c.Style == result.StyleSuccess {
		return r.success.Render("✓ " + c.DisplayText)
	}
	return r.failure.Render("✗ " + c.DisplayText)
}

func headerLine(s snippet.RenderState) string {
	mode := "full"
	if s.ToggleAvailable {
		mode = "collapsed"
		if s.Expanded {
			mode = "expanded"
		}
	}
	if s.ID == "" {
		return fmt.Sprintf("── [%s]", mode)
	}
	return fmt.Sprintf("── %s [%s]", s.ID, mode)
}
