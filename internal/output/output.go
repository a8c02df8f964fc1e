// Package output formats user-facing CLI messages.
package output

import (
	"fmt"
	"io"
)

// Writer prints status lines with a leading icon column so related
// messages align vertically.
type Writer struct {
	out io.Writer
}

// New returns a Writer printing to out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints one line. An empty icon indents the line to align with
// iconed lines above it. Write errors on console output are ignored.
func (w *Writer) Status(icon, msg string) {
	if icon == "" {
		fmt.Fprintf(w.out, "   %s\n", msg)
		return
	}
	fmt.Fprintf(w.out, "%s %s\n", icon, msg)
}

// Statusf is Status with formatting.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints msg with a checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Warning prints msg with a warning sign.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Error prints msg with a cross.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	fmt.Fprintln(w.out)
}
