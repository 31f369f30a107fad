package katcp

import "sync"

// InformLog collects asynchronous informs, those not belonging to the request
// in flight, in receive order. It is safe for concurrent use: the reader
// appends while callers drain.
type InformLog struct {
	mu    sync.Mutex
	lines []string
}

// Append adds a rendered inform line.
func (l *InformLog) Append(line string) {
	l.mu.Lock()
	l.lines = append(l.lines, line)
	l.mu.Unlock()
}

// Drain returns a copy of the collected informs. If clear is true the log is
// emptied in the same critical section, so no inform is returned twice or lost.
func (l *InformLog) Drain(clear bool) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.lines))
	copy(out, l.lines)
	if clear {
		l.lines = nil
	}
	return out
}

// Len returns the number of collected informs.
func (l *InformLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}
