// Package clock provides the monotonic scheduling clock and the
// host-timestamp helpers shared by every governor and wire record.
package clock

import "time"

// Timestamp is milliseconds since the Unix epoch, UTC. Chosen for a
// compact 8-byte wire form with sub-millisecond resolution (spec.md §3);
// never derive a MonotonicNs value from it.
type Timestamp float64

// Now returns the current host timestamp.
func Now() Timestamp {
	return FromTime(time.Now())
}

// FromTime converts a time.Time to the wire Timestamp representation.
func FromTime(t time.Time) Timestamp {
	return Timestamp(float64(t.UnixNano()) / float64(time.Millisecond))
}

// MonotonicNs is a monotonic nanosecond timestamp used only for scheduling
// and camera frame metadata; it is never transmitted on the wire.
type MonotonicNs int64

// monoEpoch anchors MonotonicNs to a process-local zero so values stay in
// an int64-friendly range across a long-running process.
var monoEpoch = time.Now()

// MonoNow returns nanoseconds since the process's monotonic epoch.
func MonoNow() MonotonicNs {
	return MonotonicNs(time.Since(monoEpoch).Nanoseconds())
}

// FrameScheduler paces a producer loop at a fixed cadence using a
// monotonic anchor and a busy-wait tail, per spec.md §4.4 step 1: coarse
// sleeps underrun the deadline, so the final stretch of any wait spins.
type FrameScheduler struct {
	interval       time.Duration
	nextFrameTime  time.Time
	spinThreshold  time.Duration
	deficitFrames  int
}

// NewFrameScheduler builds a scheduler for the given frame rate, anchored
// to now.
func NewFrameScheduler(framerateHz float64) *FrameScheduler {
	interval := time.Duration(float64(time.Second) / framerateHz)
	return &FrameScheduler{
		interval:      interval,
		nextFrameTime: time.Now(),
		spinThreshold: 2 * time.Millisecond,
	}
}

// Interval reports the configured frame period.
func (s *FrameScheduler) Interval() time.Duration { return s.interval }

// WaitNextFrame blocks until the next scheduled frame deadline, sleeping
// coarsely and then spinning through the final spinThreshold window. It
// returns true if the deadline had already passed by more than one full
// interval (severe overload); the schedule is then re-anchored to now and
// the skip is counted in DeficitFrames. It returns without waiting in
// that case; the governors log the skip and then read a frame as usual.
func (s *FrameScheduler) WaitNextFrame() (skipped bool) {
	now := time.Now()
	sleep := s.nextFrameTime.Sub(now)

	switch {
	case sleep > s.spinThreshold:
		time.Sleep(sleep - s.spinThreshold)
		s.spin(s.nextFrameTime)
	case sleep > 0:
		s.spin(s.nextFrameTime)
	case -sleep > s.interval:
		// Severely behind: skip ahead to bound cumulative drift instead
		// of reading an arbitrarily stale frame.
		skipped = true
		s.deficitFrames++
		s.nextFrameTime = now
	}

	s.nextFrameTime = s.nextFrameTime.Add(s.interval)
	return skipped
}

// spin busy-waits on the monotonic clock until deadline, used only for
// the final spinThreshold (2 ms) stretch of a frame wait.
func (s *FrameScheduler) spin(deadline time.Time) {
	for time.Now().Before(deadline) {
		// intentionally empty: coarse OS sleeps underrun short deadlines.
	}
}

// DeficitFrames reports the cumulative count of frames skipped due to
// overload, for diagnostics.
func (s *FrameScheduler) DeficitFrames() int { return s.deficitFrames }
