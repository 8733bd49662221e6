// Package clock isolates "what time is it" behind an interface so the
// overtime scan and the clock-in/out paths can be driven deterministically in
// tests. All timestamps the service produces are in one fixed reference zone.
package clock

import "time"

// Clock supplies the current time in the service's reference timezone.
type Clock interface {
	Now() time.Time
}

// Wall is the production clock. It reports time in a fixed IANA zone.
type Wall struct {
	loc *time.Location
}

func NewWall(loc *time.Location) *Wall {
	return &Wall{loc: loc}
}

func (w *Wall) Now() time.Time {
	return time.Now().In(w.loc)
}

// Fake is a manually advanced clock for tests.
type Fake struct {
	now time.Time
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time { return f.now }

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) { f.now = f.now.Add(d) }

// Set jumps the fake clock to the given instant.
func (f *Fake) Set(now time.Time) { f.now = now }
