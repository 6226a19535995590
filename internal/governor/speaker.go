package governor

import (
	"github.com/fieldsync/fieldsync/internal/devices"
	"github.com/fieldsync/fieldsync/internal/logging"
)

// SpeakerGovernor owns the local speaker output (spec.md §4.3); the
// control connection from the controller is owned by cmd/client, whose
// reader applies frequency commands through Device. Unlike the other
// governors it has no gateway consumer, since its only wire traffic is
// inbound ControlMessages rather than outbound records.
type SpeakerGovernor struct {
	speaker *devices.Speaker
	life    *Lifecycle
	log     *logging.Logger
}

// NewSpeakerGovernor wraps a speaker adapter.
func NewSpeakerGovernor(speaker *devices.Speaker, log *logging.Logger) *SpeakerGovernor {
	return &SpeakerGovernor{speaker: speaker, life: NewLifecycle(), log: log}
}

// Lifecycle exposes the governor's state machine.
func (g *SpeakerGovernor) Lifecycle() *Lifecycle { return g.life }

// Device returns the underlying speaker, so the shared control-
// connection reader (spec.md §4.4 task 3, fanned out across every
// governor from one dialed socket rather than one per governor) can
// apply a decoded frequency command directly. The sine generator's
// phase accumulator lives on *devices.Speaker and persists across
// frequency changes regardless of which caller updates it.
func (g *SpeakerGovernor) Device() *devices.Speaker { return g.speaker }
