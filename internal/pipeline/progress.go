package pipeline

import (
	"fmt"
	"io"
	"time"
)

// Reporter receives progress updates. Run serializes calls, so
// implementations need no locking of their own.
type Reporter interface {
	Update(label string, done, total int, elapsed time.Duration)
	Done()
}

// NopReporter discards progress.
type NopReporter struct{}

// Update implements Reporter.
func (NopReporter) Update(string, int, int, time.Duration) {}

// Done implements Reporter.
func (NopReporter) Done() {}

// LineReporter rewrites a single terminal line with the current progress.
type LineReporter struct {
	out     io.Writer
	written bool
}

// NewLineReporter creates a reporter writing to out.
func NewLineReporter(out io.Writer) *LineReporter {
	return &LineReporter{out: out}
}

// Update implements Reporter.
func (r *LineReporter) Update(label string, done, total int, elapsed time.Duration) {
	pct := 100
	if total > 0 {
		pct = done * 100 / total
	}
	if label == "" {
		label = "processing"
	}
	fmt.Fprintf(r.out, "\r%s: %3d%% (%d/%d) %s", label, pct, done, total, elapsed.Round(100*time.Millisecond))
	r.written = true
}

// Done terminates the progress line.
func (r *LineReporter) Done() {
	if r.written {
		fmt.Fprintln(r.out)
		r.written = false
	}
}
