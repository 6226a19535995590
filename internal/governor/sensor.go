package governor

import (
	"net"
	"time"

	"github.com/fieldsync/fieldsync/internal/clock"
	"github.com/fieldsync/fieldsync/internal/devices"
	"github.com/fieldsync/fieldsync/internal/logging"
	"github.com/fieldsync/fieldsync/internal/ring"
	"github.com/fieldsync/fieldsync/internal/transport"
	"github.com/fieldsync/fieldsync/internal/wire"
)

// SensorGovernor owns one BMI sensor's poller, DoubleBuffer, and
// gateway socket (spec.md §3's per-device Ownership rule). Grounded on
// original_source/src/governors.py's SensorGovernor: a fixed-cadence
// producer filling a DoubleBuffer and a consumer draining it over a
// reconnecting TCP socket.
type SensorGovernor struct {
	Idx        uint32
	sensor     *devices.Sensor
	buf        *ring.DoubleBuffer[wire.SensorRecord]
	sched      *clock.FrameScheduler
	life       *Lifecycle
	log        *logging.Logger
	dropIfFull bool

	recon *transport.Reconnector
}

// NewSensorGovernor wires together a sensor adapter, a fixed-capacity
// double buffer, and a reconnector targeting the ingestor gateway.
// dropIfFull is the buffer's overload policy (spec.md §4.2): false lets
// a stalled consumer apply backpressure via swap-and-retry before
// signaling buffer-full, true discards straight away.
func NewSensorGovernor(idx uint32, sensor *devices.Sensor, capacity int, framerateHz float64, gatewayAddr string, dropIfFull bool, log *logging.Logger) *SensorGovernor {
	return &SensorGovernor{
		Idx:        idx,
		sensor:     sensor,
		buf:        ring.NewDoubleBuffer[wire.SensorRecord](capacity),
		sched:      clock.NewFrameScheduler(framerateHz),
		life:       NewLifecycle(),
		log:        log,
		dropIfFull: dropIfFull,
		recon:      transport.NewReconnector(gatewayAddr),
	}
}

// Lifecycle exposes the governor's state machine for the controller
// and termination listener to drive.
func (g *SensorGovernor) Lifecycle() *Lifecycle { return g.life }

// Producer runs the fixed-cadence poll loop described in spec.md §4.4:
// sleep to the next frame boundary, read the pose, stamp it, and push
// into the double buffer. When the buffer cannot take the record (per
// the dropIfFull policy of spec.md §4.2), the new record is discarded;
// records already buffered are kept.
func (g *SensorGovernor) Producer() {
	g.life.SetState(StateRunning)
	for !g.life.TerminationRequested() {
		skipped := g.sched.WaitNextFrame()
		if skipped {
			g.log.Warn("sensor producer fell behind schedule", "idx", g.Idx, "deficit", g.sched.DeficitFrames())
		}
		pose, err := g.sensor.ReadPose()
		if err != nil {
			g.log.Error("sensor read failed", "idx", g.Idx, "err", err)
			continue
		}
		rec := wire.SensorRecord{Ts: clock.Now(), X: pose.X, Y: pose.Y, H: pose.H, Idx: g.Idx}
		if err := g.buf.Put(rec, g.dropIfFull); err != nil {
			g.log.Warn("sensor buffer overloaded, dropping frame", "idx", g.Idx)
		}
	}
	g.life.SetState(StateDraining)
}

// Consumer dials the ingestor gateway, performs the hello/handshake
// exchange, then drains the double buffer over the per-device socket
// until termination, reconnecting with backoff on any transport failure
// (spec.md §4.6). It never emits END_STOP while either ring is
// non-empty, and emits exactly one END_STOP once both are drained after
// termination (spec.md §4.4 invariants).
func (g *SensorGovernor) Consumer() {
	for {
		conn, err := connectAndHandshake(g.recon, wire.KindSensor, g.Idx)
		if err != nil {
			g.log.Error("sensor consumer handshake failed", "idx", g.Idx, "err", err)
			time.Sleep(g.recon.Backoff)
			continue
		}
		done := g.drainLoop(conn)
		if done {
			if err := wire.SendAll(conn, wire.PackEndStopPadded(wire.SensorRecordSize)); err != nil {
				g.log.Error("sensor consumer END_STOP send failed", "idx", g.Idx, "err", err)
			}
			conn.Close()
			g.life.SetState(StateStopped)
			return
		}
		conn.Close()
	}
}

// drainLoop ships every buffered record to conn, returning true once
// termination has been requested and both rings are empty.
func (g *SensorGovernor) drainLoop(conn net.Conn) bool {
	for {
		if !g.buf.Ready() {
			if g.life.TerminationRequested() && g.buf.Empty() {
				return true
			}
			if !g.buf.Empty() {
				// back is empty but front holds records: promote them.
				g.buf.Swap()
				continue
			}
			time.Sleep(5 * time.Millisecond)
			continue
		}
		for _, rec := range g.buf.Drain() {
			if err := wire.SendAll(conn, rec.Pack()); err != nil {
				g.log.Error("sensor consumer send failed", "idx", g.Idx, "err", err)
				return false
			}
		}
	}
}
