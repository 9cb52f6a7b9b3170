// Package ui provides colored console narration for deployment runs.
package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

var (
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	blue   = color.New(color.FgBlue)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
	faint  = color.New(color.Faint)
)

// ruleWidth is the width of the separator printed between units.
const ruleWidth = 72

var (
	mu  sync.Mutex
	out io.Writer
)

// SetOutput sends narration to w. nil restores the color package default,
// which is stdout unless color.Output was replaced.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	if out != nil {
		return out
	}
	return color.Output
}

func line(c *color.Color, prefix, format string, args ...any) {
	c.Fprintf(writer(), prefix+format+"\n", args...)
}

// Success prints a green success message with checkmark.
func Success(format string, args ...any) { line(green, "✓ ", format, args...) }

// Error prints a red error message with X.
func Error(format string, args ...any) { line(red, "✗ ", format, args...) }

// Warning prints a yellow warning message.
func Warning(format string, args ...any) { line(yellow, "⚠ ", format, args...) }

// Info prints a blue info message.
func Info(format string, args ...any) { line(blue, "", format, args...) }

// Step prints a numbered step in cyan.
func Step(n int, format string, args ...any) {
	w := writer()
	cyan.Fprintf(w, "[%d] ", n)
	fmt.Fprintf(w, format+"\n", args...)
}

// Header prints a bold header.
func Header(format string, args ...any) { line(bold, "", format, args...) }

// Rule prints a faint horizontal separator.
func Rule() {
	faint.Fprintln(writer(), strings.Repeat("─", ruleWidth))
}

// Blank prints an empty line.
func Blank() {
	fmt.Fprintln(writer())
}

// Detail prints an uncolored, indented line.
func Detail(format string, args ...any) {
	fmt.Fprintf(writer(), "  "+format+"\n", args...)
}

// Check results, as listed by doctor.

// Pass prints a passed check.
func Pass(format string, args ...any) { line(green, "  * ", format, args...) }

// Notice prints a check that found something optional missing.
func Notice(format string, args ...any) { line(yellow, "  ! ", format, args...) }

// Fail prints a failed check.
func Fail(format string, args ...any) { line(red, "  x ", format, args...) }

// Tally prints the check summary line.
func Tally(passed, warned, failed int) {
	w := writer()
	fmt.Fprint(w, "Summary: ")
	green.Fprintf(w, "%d passed", passed)
	fmt.Fprint(w, ", ")
	yellow.Fprintf(w, "%d warnings", warned)
	fmt.Fprint(w, ", ")
	red.Fprintf(w, "%d failed\n", failed)
}

// Nautical messages

// Anchor marks a unit that stays where it is (skipped).
func Anchor(format string, args ...any) { line(blue, "⚓ ", format, args...) }

// Package marks a build being produced.
func Package(format string, args ...any) { line(green, "📦 ", format, args...) }

// Compass marks a manifest or image reference change.
func Compass(format string, args ...any) { line(cyan, "🧭 ", format, args...) }

// Ship marks changes leaving the machine (commit and push).
func Ship(format string, args ...any) { line(green, "🚢 ", format, args...) }
