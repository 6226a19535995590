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

// AuxGovernor owns one auxiliary scalar channel's DoubleBuffer and
// gateway socket at a fixed cadence, mirroring SensorGovernor. Grounded
// on original_source/src/blankSensor.py's placeholder channel, promoted
// here from composite-legacy-only to a full per-device stream per the
// per-device port model (spec.md §9 design notes).
type AuxGovernor struct {
	Ident      uint32
	chan_      devices.AuxSource
	buf        *ring.DoubleBuffer[wire.AuxFrame]
	sched      *clock.FrameScheduler
	life       *Lifecycle
	log        *logging.Logger
	dropIfFull bool
	recon      *transport.Reconnector
}

// NewAuxGovernor wires an aux channel adapter to a double buffer and a
// reconnector targeting the ingestor gateway. ch may be the simulated
// devices.AuxChannel or any other devices.AuxSource, e.g.
// devices.PSUAuxChannel reading a real bench supply. dropIfFull is the
// buffer's overload policy (spec.md §4.2).
func NewAuxGovernor(ident uint32, ch devices.AuxSource, capacity int, framerateHz float64, gatewayAddr string, dropIfFull bool, log *logging.Logger) *AuxGovernor {
	return &AuxGovernor{
		Ident:      ident,
		chan_:      ch,
		buf:        ring.NewDoubleBuffer[wire.AuxFrame](capacity),
		sched:      clock.NewFrameScheduler(framerateHz),
		life:       NewLifecycle(),
		log:        log,
		dropIfFull: dropIfFull,
		recon:      transport.NewReconnector(gatewayAddr),
	}
}

// Lifecycle exposes the governor's state machine.
func (g *AuxGovernor) Lifecycle() *Lifecycle { return g.life }

// Producer samples the aux channel at the configured cadence.
func (g *AuxGovernor) Producer() {
	g.life.SetState(StateRunning)
	for !g.life.TerminationRequested() {
		skipped := g.sched.WaitNextFrame()
		if skipped {
			g.log.Warn("aux producer fell behind schedule", "ident", g.Ident, "deficit", g.sched.DeficitFrames())
		}
		frame := wire.AuxFrame{Ts: clock.Now(), Value: g.chan_.Read()}
		if err := g.buf.Put(frame, g.dropIfFull); err != nil {
			g.log.Warn("aux buffer overloaded, dropping frame", "ident", g.Ident)
		}
	}
	g.life.SetState(StateDraining)
}

// Consumer dials the gateway, handshakes as an aux device, and drains
// buffered frames until termination, emitting exactly one END_STOP once
// both rings are drained.
func (g *AuxGovernor) Consumer() {
	for {
		conn, err := connectAndHandshake(g.recon, wire.KindAux, g.Ident)
		if err != nil {
			g.log.Error("aux consumer handshake failed", "ident", g.Ident, "err", err)
			time.Sleep(g.recon.Backoff)
			continue
		}
		done := g.drainLoop(conn)
		if done {
			if err := wire.SendAll(conn, wire.PackEndStopPadded(wire.AuxFrameSize)); err != nil {
				g.log.Error("aux consumer END_STOP send failed", "ident", g.Ident, "err", err)
			}
			conn.Close()
			g.life.SetState(StateStopped)
			return
		}
		conn.Close()
	}
}

func (g *AuxGovernor) drainLoop(conn net.Conn) bool {
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
		for _, frame := range g.buf.Drain() {
			if err := wire.SendAll(conn, frame.Pack()); err != nil {
				g.log.Error("aux consumer send failed", "ident", g.Ident, "err", err)
				return false
			}
		}
	}
}
