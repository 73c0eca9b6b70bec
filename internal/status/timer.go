package status

import "time"

// newRenderTimer wraps time.AfterFunc so a zero or negative buffer fires
// synchronously-ish (next tick) instead of panicking or waiting forever.
func newRenderTimer(d time.Duration, fn func()) *time.Timer {
	if d <= 0 {
		d = time.Millisecond
	}
	return time.AfterFunc(d, fn)
}
