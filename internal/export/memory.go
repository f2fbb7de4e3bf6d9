package export

import (
	"context"
	"sync"
)

// MemoryAppender collects events in memory. It backs tests and local runs
// without Sheets credentials.
type MemoryAppender struct {
	mu     sync.Mutex
	events []Event
}

var _ Appender = (*MemoryAppender)(nil)

func NewMemoryAppender() *MemoryAppender {
	return &MemoryAppender{}
}

func (a *MemoryAppender) Append(_ context.Context, ev Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return nil
}

// Events returns a copy of everything appended so far.
func (a *MemoryAppender) Events() []Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Event, len(a.events))
	copy(out, a.events)
	return out
}
