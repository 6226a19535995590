package governor

import (
	"net"
	"time"

	"github.com/fieldsync/fieldsync/internal/clock"
	"github.com/fieldsync/fieldsync/internal/devices"
	"github.com/fieldsync/fieldsync/internal/logging"
	"github.com/fieldsync/fieldsync/internal/ring"
	"github.com/fieldsync/fieldsync/internal/shmring"
	"github.com/fieldsync/fieldsync/internal/transport"
	"github.com/fieldsync/fieldsync/internal/wire"
)

// CameraGovernor owns one camera's capture pipeline, its DoubleBuffer,
// and its gateway socket, at a fixed frame cadence like SensorGovernor
// (spec.md §4.3/§4.4).
type CameraGovernor struct {
	Ident      uint32
	camera     *devices.Camera
	buf        *ring.DoubleBuffer[wire.CameraRecord]
	sched      *clock.FrameScheduler
	life       *Lifecycle
	log        *logging.Logger
	dropIfFull bool
	recon      *transport.Reconnector
	tee        *shmring.Ring
}

// NewCameraGovernor wires a camera adapter to a double buffer and a
// reconnector targeting the ingestor gateway. dropIfFull is the
// buffer's overload policy (spec.md §4.2).
func NewCameraGovernor(ident uint32, camera *devices.Camera, capacity int, framerateHz float64, gatewayAddr string, dropIfFull bool, log *logging.Logger) *CameraGovernor {
	return &CameraGovernor{
		Ident:      ident,
		camera:     camera,
		buf:        ring.NewDoubleBuffer[wire.CameraRecord](capacity),
		sched:      clock.NewFrameScheduler(framerateHz),
		life:       NewLifecycle(),
		log:        log,
		dropIfFull: dropIfFull,
		recon:      transport.NewReconnector(gatewayAddr),
	}
}

// Lifecycle exposes the governor's state machine.
func (g *CameraGovernor) Lifecycle() *Lifecycle { return g.life }

// EnableLocalTee mirrors every captured frame into a named POSIX
// shared-memory ring (client.camera_shm_tee in config), so a same-host
// preview tool can follow the live feed without adding a load-bearing
// network consumer (SPEC_FULL.md DOMAIN STACK: golang.org/x/sys wired
// into the camera shared-memory tee path). The gateway stream remains
// the only consumer that END_STOP and draining semantics apply to.
func (g *CameraGovernor) EnableLocalTee(name string) error {
	segSize := uint64(8+g.camera.PayloadSize()) * 64
	ring, err := shmring.Create(name, segSize)
	if err != nil {
		return err
	}
	g.tee = ring
	return nil
}

// Producer captures one frame per scheduled cadence tick, discarding
// the adapter's local MonotonicNs timestamp and stamping the record with
// a wall-clock Timestamp taken after the read (spec.md §3: MonotonicNs
// never crosses the wire).
func (g *CameraGovernor) Producer() {
	g.life.SetState(StateRunning)
	for !g.life.TerminationRequested() {
		skipped := g.sched.WaitNextFrame()
		if skipped {
			g.log.Warn("camera producer fell behind schedule", "ident", g.Ident, "deficit", g.sched.DeficitFrames())
		}
		payload, _, err := g.camera.ReadFrame()
		if err != nil {
			g.log.Error("camera read failed", "ident", g.Ident, "err", err)
			continue
		}
		rec := wire.CameraRecord{Ts: clock.Now(), Payload: payload}
		if g.tee != nil {
			if _, err := g.tee.Write(rec.Pack()); err != nil {
				g.log.Warn("camera shm tee write failed", "ident", g.Ident, "err", err)
			}
		}
		if err := g.buf.Put(rec, g.dropIfFull); err != nil {
			g.log.Warn("camera buffer overloaded, dropping frame", "ident", g.Ident)
		}
	}
	g.life.SetState(StateDraining)
}

// Consumer dials the gateway, handshakes as a camera device, and drains
// buffered frames until termination, emitting exactly one END_STOP once
// both rings are drained.
func (g *CameraGovernor) Consumer() {
	for {
		conn, err := connectAndHandshake(g.recon, wire.KindCamera, g.Ident)
		if err != nil {
			g.log.Error("camera consumer handshake failed", "ident", g.Ident, "err", err)
			time.Sleep(g.recon.Backoff)
			continue
		}
		done := g.drainLoop(conn)
		if done {
			if err := wire.SendAll(conn, wire.PackEndStopPadded(8+g.camera.PayloadSize())); err != nil {
				g.log.Error("camera consumer END_STOP send failed", "ident", g.Ident, "err", err)
			}
			conn.Close()
			g.life.SetState(StateStopped)
			if g.tee != nil {
				g.tee.Close()
			}
			return
		}
		conn.Close()
	}
}

func (g *CameraGovernor) drainLoop(conn net.Conn) bool {
	for {
		if !g.buf.Ready() {
			if g.life.TerminationRequested() && g.buf.Empty() {
				return true
			}
			if !g.buf.Empty() {
				// back is empty but front holds frames: promote them.
				g.buf.Swap()
				continue
			}
			time.Sleep(5 * time.Millisecond)
			continue
		}
		for _, rec := range g.buf.Drain() {
			if err := wire.SendAll(conn, rec.Pack()); err != nil {
				g.log.Error("camera consumer send failed", "ident", g.Ident, "err", err)
				return false
			}
		}
	}
}
