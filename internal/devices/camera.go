package devices

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/fieldsync/fieldsync/internal/clock"
)

// FrameSource is the opaque camera capture backend interface spec.md §1
// describes: a streaming pipeline yielding raw pixel buffers. A real
// implementation would wrap a V4L2 or vendor SDK capture pipeline keyed
// by sensor_id.
type FrameSource interface {
	Open() error
	Close() error
	ReadFrame(buf []byte) error
}

// SimulatedFrameSource yields uniform-noise frames of the configured
// size, standing in for the out-of-scope capture backend. Grounded on
// the teacher's dummy_streamer.go generated-pattern simulator.
type SimulatedFrameSource struct {
	ident     [2]uint8
	rnd       *rand.Rand
}

// NewSimulatedFrameSource builds a source identified by ident.
func NewSimulatedFrameSource(ident [2]uint8) *SimulatedFrameSource {
	seed := int64(ident[0])<<8 | int64(ident[1])
	return &SimulatedFrameSource{ident: ident, rnd: rand.New(rand.NewSource(seed + 1))}
}

// Open is a no-op for the simulated source.
func (s *SimulatedFrameSource) Open() error { return nil }

// Close is a no-op for the simulated source.
func (s *SimulatedFrameSource) Close() error { return nil }

// ReadFrame fills buf with pseudo-random pixel data.
func (s *SimulatedFrameSource) ReadFrame(buf []byte) error {
	s.rnd.Read(buf)
	return nil
}

// Camera adapts a FrameSource with a fixed payload size
// (width*height*channels, spec.md §3 invariant) and an optional
// timestamp text overlay.
type Camera struct {
	Width, Height, Channels int
	source                  FrameSource
	overlay                 bool
}

// NewCamera wraps source with the given frame geometry.
func NewCamera(source FrameSource, width, height, channels int, overlay bool) *Camera {
	return &Camera{Width: width, Height: height, Channels: channels, source: source, overlay: overlay}
}

// PayloadSize returns the fixed per-frame byte size.
func (c *Camera) PayloadSize() int { return c.Width * c.Height * c.Channels }

// Start opens the underlying capture pipeline.
func (c *Camera) Start() error { return c.source.Open() }

// Stop closes the underlying capture pipeline.
func (c *Camera) Stop() error { return c.source.Close() }

// ReadFrame captures one frame, stamping it with a monotonic-ns
// timestamp and optionally burning in an HH:MM:SS.mmm text overlay in
// the frame's first row (spec.md §4.3).
func (c *Camera) ReadFrame() ([]byte, clock.MonotonicNs, error) {
	buf := make([]byte, c.PayloadSize())
	if err := c.source.ReadFrame(buf); err != nil {
		return nil, 0, fmt.Errorf("devices: camera read: %w", err)
	}
	ts := clock.MonoNow()
	if c.overlay {
		burnInTimestamp(buf, c.Width, c.Channels, time.Now())
	}
	return buf, ts, nil
}

// burnInTimestamp stamps an HH:MM:SS.mmm marker into the top row of the
// frame by writing a distinctive byte pattern per digit cell; this is a
// minimal stand-in for a real text-rendering overlay, sufficient to
// prove the timestamp reached the frame buffer.
func burnInTimestamp(buf []byte, width, channels int, t time.Time) {
	stamp := t.Format("15:04:05.000")
	rowBytes := width * channels
	if rowBytes < len(stamp)*channels {
		return
	}
	for i, r := range stamp {
		off := i * channels
		if off+channels > rowBytes || off+channels > len(buf) {
			break
		}
		for c := 0; c < channels; c++ {
			buf[off+c] = byte(r)
		}
	}
}
