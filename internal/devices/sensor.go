// Package devices implements the adapters of spec.md §4.3: Sensor,
// Microphone, Camera, Aux scalar, and Speaker. The underlying hardware
// SDKs are out of scope (spec.md §1) and treated as opaque pollers; the
// simulated implementations here stand in for them, grounded on the
// teacher's dummy_streamer.go/dummy_streamer_linux.go named-pipe
// simulator and on original_source's per-device modules (src/Microphone.py,
// src/camera.py, src/blankSensor.py). Each adapter owns only the device
// read; the owning governor (internal/governor) owns the DoubleBuffer
// that append/pop feed, per spec.md §3's Ownership rule.
package devices

import (
	"math"
	"math/rand"
	"sync"

	"github.com/fieldsync/fieldsync/internal/wire"
)

// Poller is the opaque odometry driver interface spec.md §1 describes:
// `begin()` and `get_pose()`. A real implementation would wrap an I2C
// bus driver at the configured address.
type Poller interface {
	Begin() error
	GetPose() (wire.Pose, error)
}

// SimulatedPoller is a deterministic stand-in for the I2C odometry
// driver: a slow random walk in (x, y) with a drifting heading, grounded
// on the teacher's dummy_streamer.go phase-accumulator style generator.
type SimulatedPoller struct {
	mu      sync.Mutex
	addr    uint8
	x, y, h float64
	rnd     *rand.Rand
}

// NewSimulatedPoller builds a poller addressed at addr, seeded from addr
// so two sensors on the same process diverge deterministically.
func NewSimulatedPoller(addr uint8) *SimulatedPoller {
	return &SimulatedPoller{addr: addr, rnd: rand.New(rand.NewSource(int64(addr) + 1))}
}

// Begin is a no-op for the simulated poller; a real I2C driver would
// initialize the bus here.
func (p *SimulatedPoller) Begin() error { return nil }

// GetPose advances the random walk by one step and returns the new pose.
func (p *SimulatedPoller) GetPose() (wire.Pose, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.x += (p.rnd.Float64() - 0.5) * 0.02
	p.y += (p.rnd.Float64() - 0.5) * 0.02
	p.h += (p.rnd.Float64() - 0.5) * 0.05
	if p.h > math.Pi {
		p.h -= 2 * math.Pi
	} else if p.h < -math.Pi {
		p.h += 2 * math.Pi
	}
	return wire.Pose{X: p.x, Y: p.y, H: p.h}, nil
}

// Sensor adapts a Poller with a stable device index (0 or 1, spec.md §3
// invariant).
type Sensor struct {
	Idx    uint32
	poller Poller
}

// NewSensor wraps poller as device index idx.
func NewSensor(idx uint32, poller Poller) *Sensor {
	return &Sensor{Idx: idx, poller: poller}
}

// Start initializes the underlying driver.
func (s *Sensor) Start() error { return s.poller.Begin() }

// ReadPose polls one Pose from the underlying driver.
func (s *Sensor) ReadPose() (wire.Pose, error) {
	return s.poller.GetPose()
}
