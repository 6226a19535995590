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

// MicrophoneGovernor owns one microphone's capture stream, its
// DoubleBuffer, and its gateway socket, mirroring SensorGovernor but at
// audio period cadence (spec.md §4.3: "period = rate/framerate").
type MicrophoneGovernor struct {
	Ident      uint32
	mic        *devices.Microphone
	buf        *ring.DoubleBuffer[wire.AudioFrame]
	life       *Lifecycle
	log        *logging.Logger
	dropIfFull bool
	recon      *transport.Reconnector
}

// NewMicrophoneGovernor wires a microphone adapter to a double buffer
// and a reconnector targeting the ingestor gateway. dropIfFull is the
// buffer's overload policy (spec.md §4.2).
func NewMicrophoneGovernor(ident uint32, mic *devices.Microphone, capacity int, gatewayAddr string, dropIfFull bool, log *logging.Logger) *MicrophoneGovernor {
	return &MicrophoneGovernor{
		Ident:      ident,
		mic:        mic,
		buf:        ring.NewDoubleBuffer[wire.AudioFrame](capacity),
		life:       NewLifecycle(),
		log:        log,
		dropIfFull: dropIfFull,
		recon:      transport.NewReconnector(gatewayAddr),
	}
}

// Lifecycle exposes the governor's state machine.
func (g *MicrophoneGovernor) Lifecycle() *Lifecycle { return g.life }

// Producer blocks on one period of audio capture at a time and pushes
// each frame into the double buffer; the blocking call itself paces the
// loop, unlike the busy-wait sensor scheduler (spec.md §4.3).
func (g *MicrophoneGovernor) Producer() {
	g.life.SetState(StateRunning)
	for !g.life.TerminationRequested() {
		samples, err := g.mic.ReadFrame()
		if err != nil {
			g.log.Error("microphone read failed", "ident", g.Ident, "err", err)
			continue
		}
		frame := wire.AudioFrame{Ts: clock.Now(), Samples: samples}
		if err := g.buf.Put(frame, g.dropIfFull); err != nil {
			g.log.Warn("microphone buffer overloaded, dropping frame", "ident", g.Ident)
		}
	}
	g.life.SetState(StateDraining)
}

// Consumer dials the gateway, handshakes as a microphone device, and
// drains buffered audio frames until termination (spec.md §4.5/§4.6),
// emitting exactly one END_STOP once both rings are drained.
func (g *MicrophoneGovernor) Consumer() {
	for {
		conn, err := connectAndHandshake(g.recon, wire.KindMicrophone, g.Ident)
		if err != nil {
			g.log.Error("microphone consumer handshake failed", "ident", g.Ident, "err", err)
			time.Sleep(g.recon.Backoff)
			continue
		}
		done := g.drainLoop(conn)
		if done {
			if err := wire.SendAll(conn, wire.PackEndStopPadded(8+g.mic.FrameByteSize())); err != nil {
				g.log.Error("microphone consumer END_STOP send failed", "ident", g.Ident, "err", err)
			}
			conn.Close()
			g.life.SetState(StateStopped)
			return
		}
		conn.Close()
	}
}

func (g *MicrophoneGovernor) drainLoop(conn net.Conn) bool {
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
				g.log.Error("microphone consumer send failed", "ident", g.Ident, "err", err)
				return false
			}
		}
	}
}
