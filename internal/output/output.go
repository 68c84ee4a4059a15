// Package output renders CLI status lines, progress bars, and formatted
// code blocks for vecdb's command-line tools.
package output

import (
	"fmt"
	"io"
	"strings"
)

const progressBarWidth = 30

// Writer formats command output onto a single io.Writer.
type Writer struct {
	out      io.Writer
	useColor bool
}

// New creates a Writer that writes to out. Color is disabled; vecdb's
// output is consumed by scripts and terminals of unknown capability alike.
func New(out io.Writer) *Writer {
	return &Writer{out: out, useColor: false}
}

// Status prints icon followed by msg, or just msg indented if icon is empty.
// Write errors are ignored: console output has no caller to report them to.
func (w *Writer) Status(icon, msg string) {
	if icon == "" {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
}

// Statusf is Status with fmt.Sprintf-style formatting.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints msg prefixed with a checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf is Success with fmt.Sprintf-style formatting.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints msg prefixed with a warning icon.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf is Warning with fmt.Sprintf-style formatting.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints msg prefixed with a cross mark.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf is Error with fmt.Sprintf-style formatting.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Code prints content as an indented block, surrounded by blank lines.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints a single blank line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Progress redraws an in-place progress bar via carriage return. Once
// current reaches total the line is finalized with a trailing newline.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}

	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(current, total, progressBarWidth)
	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", bar, pct, msg)

	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

// ProgressDone terminates an in-place Progress line with a newline.
func (w *Writer) ProgressDone() {
	_, _ = fmt.Fprintln(w.out)
}

func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}

	filled := int(float64(current) / float64(total) * float64(width))
	switch {
	case filled > width:
		filled = width
	case filled < 0:
		filled = 0
	}

	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
