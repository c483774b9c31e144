package commands

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Styles for status cells. They are only applied when writing to a terminal.
var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA55")).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#DD3333")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#D7A000"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type printer struct {
	w      io.Writer
	styled bool
}

// newPrinter styles output on terminals unless NO_COLOR is set.
func newPrinter(w io.Writer) *printer {
	return &printer{w: w, styled: isTerminal(w) && !termenv.EnvNoColor()}
}

// status renders a status word colored by outcome.
func (p *printer) status(s string) string {
	if !p.styled {
		return s
	}
	switch s {
	case "passed", "success", "complete":
		return successStyle.Render(s)
	case "mismatch", "partial", "running", "loading":
		return warningStyle.Render(s)
	case "error", "failed":
		return failureStyle.Render(s)
	}
	return s
}

func (p *printer) muted(s string) string {
	if !p.styled {
		return s
	}
	return mutedStyle.Render(s)
}

func (p *printer) table(header table.Row, rows []table.Row) {
	t := table.NewWriter()
	t.SetOutputMirror(p.w)
	if p.styled {
		t.SetStyle(table.StyleRounded)
	} else {
		t.SetStyle(table.StyleLight)
	}
	t.AppendHeader(header)
	t.AppendRows(rows)
	t.Render()
}

// firstLine trims multi-line error text for table cells.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func round(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
