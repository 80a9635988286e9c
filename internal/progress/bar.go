package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Bar is a one-line countdown drawn while the microphone is recording.
type Bar struct {
	label   string
	total   int
	current int
	width   int
	out     io.Writer
	mu      sync.Mutex
	done    bool
}

// New creates a countdown over total steps (seconds).
func New(label string, total int) *Bar {
	return &Bar{
		label: label,
		total: total,
		width: 30,
		out:   os.Stdout,
	}
}

// ForDuration creates a countdown with one step per second of d.
func ForDuration(label string, d time.Duration) *Bar {
	steps := int(d.Round(time.Second) / time.Second)
	if steps < 1 {
		steps = 1
	}
	return New(label, steps)
}

// SetOutput redirects rendering, mainly for tests.
func (b *Bar) SetOutput(w io.Writer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.out = w
}

// Increment advances the countdown by one step.
func (b *Bar) Increment() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current < b.total {
		b.current++
	}
	b.render()
}

// Finish completes the bar and ends the line.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.done {
		b.current = b.total
		b.render()
		fmt.Fprintln(b.out)
		b.done = true
	}
}

func (b *Bar) render() {
	if b.done || b.total <= 0 {
		return
	}

	filled := b.width * b.current / b.total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", b.width-filled)
	left := b.total - b.current

	fmt.Fprintf(b.out, "\r%s [%s] %s left   ", b.label, bar, formatDuration(time.Duration(left)*time.Second))
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
