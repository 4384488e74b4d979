// Package cli provides the keymaker command line.
package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"keymaker/internal/util"
)

// Reporter implements session.Reporter for terminal output.
// It displays the current stage on a single line that gets overwritten.
type Reporter struct {
	mu       sync.Mutex
	out      io.Writer
	status   string
	quiet    bool
	start    time.Time
	now      func() time.Time
	lastLine int // Length of last printed line (for clearing)
}

// NewReporter creates a reporter writing to out.
// If quiet is true, only errors are printed.
func NewReporter(out io.Writer, quiet bool) *Reporter {
	return &Reporter{
		out:   out,
		quiet: quiet,
		start: time.Now(),
		now:   time.Now,
	}
}

// SetStatus updates the status message.
func (r *Reporter) SetStatus(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = text
}

// Update prints the current status with the time spent so far.
func (r *Reporter) Update() {
	if r.quiet {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Format: [00:00:01.3] Deriving identity key...
	line := fmt.Sprintf("\r[%s] %s", util.Timeify(r.now().Sub(r.start)), r.status)

	// Clear previous line if it was longer
	if len(line) < r.lastLine {
		line += strings.Repeat(" ", r.lastLine-len(line))
	}
	r.lastLine = len(line)

	fmt.Fprint(r.out, line)
}

// Finish erases the status line and restarts the clock for the next request.
func (r *Reporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.quiet && r.lastLine > 0 {
		fmt.Fprint(r.out, "\r"+strings.Repeat(" ", r.lastLine)+"\r")
	}
	r.lastLine = 0
	r.status = ""
	r.start = r.now()
}

// PrintError prints an error message.
func (r *Reporter) PrintError(format string, args ...any) {
	r.Finish()
	fmt.Fprintf(r.out, "keymaker: "+format+"\n", args...)
}

// PrintSuccess prints a success message.
func (r *Reporter) PrintSuccess(format string, args ...any) {
	if r.quiet {
		return
	}
	fmt.Fprintf(r.out, format+"\n", args...)
}
