// Package usecase contains application business logic.
package usecase

import (
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/eliteGoblin/focusd/prod_mon/internal/domain"
)

// DefaultLedgerCapacity is the number of clicks kept in memory.
const DefaultLedgerCapacity = 200

// ActivityLedger is a bounded FIFO log of click events.
// Oldest events are evicted first once capacity is reached.
type ActivityLedger struct {
	clock    quartz.Clock
	capacity int

	mu           sync.Mutex
	events       []domain.ClickEvent
	total        int64
	sessionStart time.Time
}

// NewActivityLedger creates a ledger. A non-positive capacity selects
// DefaultLedgerCapacity.
func NewActivityLedger(capacity int, clock quartz.Clock) *ActivityLedger {
	if capacity <= 0 {
		capacity = DefaultLedgerCapacity
	}
	return &ActivityLedger{
		clock:        clock,
		capacity:     capacity,
		events:       make([]domain.ClickEvent, 0, capacity),
		sessionStart: clock.Now(),
	}
}

// Record appends a click stamped with the current time and returns it.
func (l *ActivityLedger) Record(pos domain.Position, button string) domain.ClickEvent {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.total++
	ev := domain.ClickEvent{
		Timestamp: now,
		Sequence:  l.total,
		Position:  pos,
		Button:    button,
	}

	if len(l.events) >= l.capacity {
		// Shift in place so the backing array never grows past capacity.
		copy(l.events, l.events[1:])
		l.events = l.events[:len(l.events)-1]
	}
	l.events = append(l.events, ev)
	return ev
}

// Query returns events with start <= timestamp < end in storage order.
// Events without a timestamp never match.
func (l *ActivityLedger) Query(start, end time.Time) []domain.ClickEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.ClickEvent
	for _, ev := range l.events {
		if ev.Timestamp.IsZero() {
			continue
		}
		if !ev.Timestamp.Before(start) && ev.Timestamp.Before(end) {
			out = append(out, ev)
		}
	}
	return out
}

// Len returns the number of events currently held.
func (l *ActivityLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Capacity returns the maximum number of events held.
func (l *ActivityLedger) Capacity() int {
	return l.capacity
}

// TotalClicks returns the session click counter. Eviction does not reduce it.
func (l *ActivityLedger) TotalClicks() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// SessionStart returns when the ledger was created.
func (l *ActivityLedger) SessionStart() time.Time {
	return l.sessionStart
}

// SessionDuration returns the time elapsed since the session started.
func (l *ActivityLedger) SessionDuration() time.Duration {
	d := l.clock.Since(l.sessionStart)
	if d < 0 {
		return 0
	}
	return d
}
