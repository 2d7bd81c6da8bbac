package report

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Printer writes status output for a run.
type Printer struct {
	w     io.Writer
	green *color.Color
	red   *color.Color
	cyan  *color.Color
	faint *color.Color
}

// NewPrinter returns a Printer writing to w. Colors are used only when w is a
// terminal, noColor is false and NO_COLOR is not set.
func NewPrinter(w io.Writer, noColor bool) *Printer {
	p := &Printer{
		w:     w,
		green: color.New(color.FgGreen),
		red:   color.New(color.FgRed),
		cyan:  color.New(color.FgCyan),
		faint: color.New(color.Faint),
	}
	enabled := !noColor && !color.NoColor && IsTerminal(w)
	for _, c := range []*color.Color{p.green, p.red, p.cyan, p.faint} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Summary prints the status lines of s.
func (p *Printer) Summary(s *Summary) {
	lines := s.Lines()
	if len(lines) == 0 {
		return
	}
	p.green.Fprintln(p.w, lines[0])
	for _, l := range lines[1:] {
		fmt.Fprintln(p.w, l)
	}
}

// Info prints a progress line.
func (p *Printer) Info(format string, args ...interface{}) {
	p.cyan.Fprintf(p.w, format+"\n", args...)
}

// Diff prints a line diff with +/- markers.
func (p *Printer) Diff(lines []Line) {
	for _, l := range lines {
		switch l.Op {
		case OpInsert:
			p.green.Fprintln(p.w, "+ "+l.Text)
		case OpDelete:
			p.red.Fprintln(p.w, "- "+l.Text)
		default:
			p.faint.Fprintln(p.w, "  "+l.Text)
		}
	}
}
