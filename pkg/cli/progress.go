package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"mercator-hq/revkeep/pkg/retention/executor"
)

// ProgressSink prints deletion progress to a terminal. It implements
// executor.Sink.
type ProgressSink struct {
	mu       sync.Mutex
	writer   io.Writer
	barWidth int
	rendered bool
}

var _ executor.Sink = (*ProgressSink)(nil)

// NewProgressSink creates a progress sink that writes to w.
// If w is nil, it defaults to os.Stdout.
func NewProgressSink(w io.Writer) *ProgressSink {
	if w == nil {
		w = os.Stdout
	}
	return &ProgressSink{
		writer:   w,
		barWidth: 30,
	}
}

// Progress renders the bar and status line for a finished chunk.
func (p *ProgressSink) Progress(pr executor.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	filled := int(float64(p.barWidth) * pr.Percentage / 100)
	if filled > p.barWidth {
		filled = p.barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.barWidth-filled)

	fmt.Fprintf(p.writer, "\r[%s] %s", bar, ProgressMessage(pr))
	p.rendered = true
}

// Finish prints the run outcome.
func (p *ProgressSink) Finish(s *executor.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rendered {
		fmt.Fprintln(p.writer)
		p.rendered = false
	}

	switch s.State {
	case executor.StateCompleted:
		switch {
		case s.Total == 0:
			fmt.Fprintln(p.writer, "No revisions to delete.")
		case s.DryRun:
			fmt.Fprintf(p.writer, "✓ Dry run: %d of %d revisions would be deleted.\n", s.Deleted, s.Total)
		default:
			fmt.Fprintf(p.writer, "✓ Deleted %d of %d revisions in %s.\n", s.Deleted, s.Total, formatEstimate(s.Duration))
		}
		if s.Skipped > 0 {
			fmt.Fprintf(p.writer, "  %d skipped (already gone or current).\n", s.Skipped)
		}
	case executor.StateCancelled:
		fmt.Fprintf(p.writer, "✗ Cancelled after %d of %d revisions (%d deleted).\n", s.Processed, s.Total, s.Deleted)
	default:
		fmt.Fprintf(p.writer, "✗ Error: %v\n", s.Err)
	}
}

// ProgressMessage formats a progress event as
// "Deleted 4 out of 10 (40%). Estimated time: 3s."
func ProgressMessage(p executor.Progress) string {
	verb := "Deleted"
	if p.DryRun {
		verb = "Checked"
	}
	return fmt.Sprintf("%s %d out of %d (%.0f%%). Estimated time: %s.",
		verb, p.Processed, p.Total, p.Percentage, formatEstimate(p.EstimatedRemaining))
}

func formatEstimate(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	return d.Round(time.Second).String()
}
