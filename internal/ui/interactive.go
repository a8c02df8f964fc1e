package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const barWidth = 30

// InteractiveRenderer redraws a single progress line in place using
// carriage returns. Errors break the line so they stay visible.
type InteractiveRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	lineOpen bool
	errors   []ErrorEvent
}

// NewInteractiveRenderer creates an in-place updating renderer.
func NewInteractiveRenderer(out io.Writer) *InteractiveRenderer {
	return &InteractiveRenderer{out: out}
}

// UpdateProgress implements Renderer.
func (r *InteractiveRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Total > 0 {
		pct := float64(event.Current) / float64(event.Total) * 100
		_, _ = fmt.Fprintf(r.out, "\r%-9s [%s] %3.0f%% %s\033[K",
			event.Stage.String(), renderBar(event.Current, event.Total), pct, event.Message)
	} else {
		_, _ = fmt.Fprintf(r.out, "\r%-9s %s\033[K", event.Stage.String(), event.Message)
	}
	r.lineOpen = true
}

// AddError implements Renderer.
func (r *InteractiveRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)
	r.breakLine()

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.DocumentID != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.DocumentID, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *InteractiveRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.breakLine()
	_, _ = fmt.Fprintf(r.out, "✅ %d documents across %d store(s) in %s",
		stats.Documents, stats.Stores, stats.Duration.Round(100*time.Millisecond))
	if stats.Errors > 0 || stats.Warnings > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d errors, %d warnings)", stats.Errors, stats.Warnings)
	}
	_, _ = fmt.Fprintln(r.out)

	if stats.Embedder.Provider != "" {
		_, _ = fmt.Fprintf(r.out, "   embedder: %s (%s, %d dims)\n",
			stats.Embedder.Provider, stats.Embedder.Model, stats.Embedder.Dimensions)
	}
}

// breakLine terminates an in-place progress line. Caller holds the lock.
func (r *InteractiveRenderer) breakLine() {
	if r.lineOpen {
		_, _ = fmt.Fprintln(r.out)
		r.lineOpen = false
	}
}

func renderBar(current, total int) string {
	filled := int(float64(current) / float64(total) * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}
