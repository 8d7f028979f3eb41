package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"ttscraper/pkg/models"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// StatusTracker follows target completion across workers
type StatusTracker struct {
	mu         sync.Mutex
	out        io.Writer
	total      int
	done       int
	failed     int
	items      int
	duplicates int
	startTime  time.Time
}

// NewStatusTracker creates a tracker for total targets
func NewStatusTracker(out io.Writer, total int) *StatusTracker {
	return &StatusTracker{
		out:       out,
		total:     total,
		startTime: time.Now(),
	}
}

// Complete records a finished target and prints its line
func (st *StatusTracker) Complete(r models.TargetResult) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.done++
	st.items += len(r.Items)
	st.duplicates += r.DuplicatesSkipped

	status := Green("[DONE]")
	switch {
	case r.Failed():
		st.failed++
		status = Red("[FAILED]")
	case r.Interrupted:
		status = Yellow("[STOPPED]")
	}

	line := fmt.Sprintf("%s %s %s %s • %d comments • %d batches",
		st.progressBar(),
		status,
		Cyan(fmt.Sprintf("W%d", r.WorkerID)),
		targetName(r),
		len(r.Items),
		r.TotalBatches,
	)
	if r.Resumed {
		line += " • " + Dim("resumed")
	}
	if r.ProxyRotations > 0 {
		line += " • " + Magenta(fmt.Sprintf("%d rotations", r.ProxyRotations))
	}
	if r.Failed() {
		line += " • " + Red(r.Error)
	}
	fmt.Fprintln(st.out, line)
}

// Done returns the number of finished targets
func (st *StatusTracker) Done() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.done
}

// Failed returns the number of targets that ended with an error
func (st *StatusTracker) Failed() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.failed
}

// Items returns the unique comments collected so far
func (st *StatusTracker) Items() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.items
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.startTime)
}

func (st *StatusTracker) progressBar() string {
	const width = 20
	filled := 0
	if st.total > 0 {
		filled = st.done * width / st.total
	}
	if filled > width {
		filled = width
	}
	bar := strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
	return fmt.Sprintf("[%s] %d/%d", bar, st.done, st.total)
}

func targetName(r models.TargetResult) string {
	if r.Label == "" {
		return r.TargetID
	}
	return fmt.Sprintf("@%s/%s", r.Label, r.TargetID)
}
