// Package clock abstracts the wall clock so day-scoped decisions can be tested deterministically.
package clock

import (
	"sync"
	"time"
)

// DayLayout is the calendar-date layout used for ticket days (site-local).
const DayLayout = "2006-01-02"

// Clock returns the current time. Production code uses Real; tests use a Fake.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Real returns a Clock backed by time.Now.
func Real() Clock { return realClock{} }

// Fake is a Clock whose time only moves when Set or Advance is called. Safe for concurrent use.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake clock fixed at t.
func NewFake(t time.Time) *Fake {
	return &Fake{now: t}
}

// Now returns the fake's current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the fake clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Day returns the calendar date of t in loc formatted with DayLayout. A nil loc means UTC.
func Day(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}

// Today returns Day(c.Now(), loc).
func Today(c Clock, loc *time.Location) string {
	return Day(c.Now(), loc)
}
