// Package termio renders harness progress and stage verdicts to the terminal,
// coloring output only when stdout is actually a terminal.
package termio

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	ansiReset  = "\033[0m"
	ansiGreen  = "\033[32m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
)

// Printer writes human-readable harness output.
type Printer struct {
	out   io.Writer
	color bool
}

// New returns a Printer on w. Color is enabled only when w is os.Stdout or
// os.Stderr attached to a terminal and noColor is false.
func New(w io.Writer, noColor bool) *Printer {
	return &Printer{out: w, color: !noColor && isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Echo prints the command line about to be executed, "+ cmd arg ..." style.
func (p *Printer) Echo(argv []string) {
	fmt.Fprintf(p.out, "+ %s\n", strings.Join(argv, " "))
}

// Infof prints an informational line.
func (p *Printer) Infof(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Warnf prints a warning line.
func (p *Printer) Warnf(format string, args ...any) {
	fmt.Fprintf(p.out, p.paint(ansiYellow, "Warning: ")+format+"\n", args...)
}

// Pass prints a green PASS line for a stage.
func (p *Printer) Pass(msg string) {
	fmt.Fprintf(p.out, "%s: %s\n", p.paint(ansiGreen, "PASS"), msg)
}

// Fail prints a red FAIL line for a stage.
func (p *Printer) Fail(msg string) {
	fmt.Fprintf(p.out, "%s: %s\n", p.paint(ansiRed, "FAIL"), msg)
}

// Skip prints a SKIP line for a stage.
func (p *Printer) Skip(msg string) {
	fmt.Fprintf(p.out, "%s: %s\n", p.paint(ansiYellow, "SKIP"), msg)
}

func (p *Printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + ansiReset
}
