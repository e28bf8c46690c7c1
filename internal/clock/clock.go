// Package clock abstracts the wall clock and deferred callbacks so that
// debounce windows, refetch delays and redirects can be tested
// deterministically.
package clock

import "time"

// Clock is the subset of the time package the controllers rely on.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f after d elapses. If d <= 0, f runs immediately
	// (in a new goroutine for Real, synchronously for Fake).
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop cancels the pending call. It returns false if the call already
// ran or was already stopped.
func (t *Timer) Stop() bool {
	if t == nil || t.stopFunc == nil {
		return false
	}
	return t.stopFunc()
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stopFunc: t.Stop}
}
