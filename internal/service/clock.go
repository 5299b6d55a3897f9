package service

import (
	"sync"
	"time"
)

// TimeLayout is RFC 3339 in UTC with a fixed six-digit fraction, so that
// timestamps order the same lexically and chronologically.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Clock issues strictly increasing timestamps even when the wall clock
// stalls or steps backwards.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

func (c *Clock) Now() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t.Format(TimeLayout)
}
