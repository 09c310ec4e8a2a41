package reconcile

import "time"

// DefaultFrameInterval is one display frame at 60Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// Scheduler runs fn once at the next frame boundary. The returned function
// cancels the call if it has not started.
type Scheduler interface {
	Schedule(fn func()) (cancel func())
}

// FrameScheduler schedules on a fixed interval timer.
type FrameScheduler struct {
	Interval time.Duration
}

// Schedule implements Scheduler.
func (s FrameScheduler) Schedule(fn func()) func() {
	d := s.Interval
	if d <= 0 {
		d = DefaultFrameInterval
	}
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
