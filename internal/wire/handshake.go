package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/fieldsync/fieldsync/internal/clock"
)

// HelloSize is the 18-byte client-hello wire size (spec.md §6):
// 6-byte ASCII device kind + u32 device ident + f64 timestamp.
const HelloSize = 6 + 4 + 8

// DeviceKind enumerates the gateway-recognized device kinds. Microphone
// is included as an additional kind per spec.md §6's note that it "may
// be exposed as an additional kind" under the canonical per-device port
// model this repo implements.
type DeviceKind string

const (
	KindSensor     DeviceKind = "sensor"
	KindCamera     DeviceKind = "camera"
	KindMicrophone DeviceKind = "mic   " // padded to 6 bytes on the wire
	KindAux        DeviceKind = "aux   "
)

// ClientHello is the 18-byte packet a client sends to the ingestor
// gateway to announce a device.
type ClientHello struct {
	Kind  DeviceKind
	Ident uint32
	Ts    clock.Timestamp
}

// Pack serializes the hello as 18 big-endian bytes. Kind is truncated or
// space-padded to exactly 6 ASCII bytes.
func (h ClientHello) Pack() []byte {
	buf := make([]byte, HelloSize)
	kindBytes := [6]byte{' ', ' ', ' ', ' ', ' ', ' '}
	copy(kindBytes[:], h.Kind)
	copy(buf[0:6], kindBytes[:])
	binary.BigEndian.PutUint32(buf[6:10], h.Ident)
	binary.BigEndian.PutUint64(buf[10:18], math.Float64bits(float64(h.Ts)))
	return buf
}

// UnpackClientHello decodes an 18-byte big-endian buffer into a
// ClientHello, failing on size mismatch (spec.md §7 Protocol: hello of
// wrong size).
func UnpackClientHello(buf []byte) (ClientHello, error) {
	if len(buf) != HelloSize {
		return ClientHello{}, fmt.Errorf("wire: client hello must be %d bytes, got %d", HelloSize, len(buf))
	}
	return ClientHello{
		Kind:  DeviceKind(buf[0:6]),
		Ident: binary.BigEndian.Uint32(buf[6:10]),
		Ts:    clock.Timestamp(math.Float64frombits(binary.BigEndian.Uint64(buf[10:18]))),
	}, nil
}

// HandshakeReplySize is the 2-byte big-endian data-port reply
// (spec.md §6).
const HandshakeReplySize = 2

// PackHandshakeReply serializes the assigned data port.
func PackHandshakeReply(port uint16) []byte {
	buf := make([]byte, HandshakeReplySize)
	binary.BigEndian.PutUint16(buf, port)
	return buf
}

// UnpackHandshakeReply decodes the assigned data port, failing on size
// mismatch.
func UnpackHandshakeReply(buf []byte) (uint16, error) {
	if len(buf) != HandshakeReplySize {
		return 0, fmt.Errorf("wire: handshake reply must be %d bytes, got %d", HandshakeReplySize, len(buf))
	}
	return binary.BigEndian.Uint16(buf), nil
}

// ControlMessageSize is the fixed 10-byte size of every controller->client
// control message (spec.md §6).
const ControlMessageSize = 10

var (
	// beginStopPrefix is the 10-byte termination trigger.
	beginStopPrefix = []byte("BEGIN_STOP")
	// beginExperimentPrefix is the supplemental start-gate trigger
	// (SPEC_FULL.md supplemented feature, grounded on
	// original_source/src/governors.py's READY-state gating).
	beginExperimentPrefix = []byte("BEGIN_EXP0")
	// endStopPrefix is the 10-byte end-of-stream sentinel written into
	// data streams by a governor's transmit task.
	endStopPrefix = []byte("END_STOP\x00\x00")
)

// ControlMessage is a decoded 10-byte controller->client message: either
// the termination trigger, the experiment-start trigger, or a frequency
// command (spec.md §6).
type ControlMessage struct {
	IsBeginStop       bool
	IsBeginExperiment bool
	FrequencyHz       float32 // valid only if neither flag above is set
}

// DecodeControlMessage classifies a 10-byte control message.
func DecodeControlMessage(buf []byte) (ControlMessage, error) {
	if len(buf) != ControlMessageSize {
		return ControlMessage{}, fmt.Errorf("wire: control message must be %d bytes, got %d", ControlMessageSize, len(buf))
	}
	if bytesHasPrefix(buf, beginStopPrefix) {
		return ControlMessage{IsBeginStop: true}, nil
	}
	if bytesHasPrefix(buf, beginExperimentPrefix) {
		return ControlMessage{IsBeginExperiment: true}, nil
	}
	freq := math.Float32frombits(binary.BigEndian.Uint32(buf[0:4]))
	return ControlMessage{FrequencyHz: freq}, nil
}

// PackBeginStop builds the 10-byte BEGIN_STOP trigger.
func PackBeginStop() []byte {
	buf := make([]byte, ControlMessageSize)
	copy(buf, beginStopPrefix)
	return buf
}

// PackBeginExperiment builds the 10-byte experiment-start trigger.
func PackBeginExperiment() []byte {
	buf := make([]byte, ControlMessageSize)
	copy(buf, beginExperimentPrefix)
	return buf
}

// PackFrequencyCommand builds a 10-byte frequency command: 4-byte
// big-endian f32 frequency plus 6 reserved expansion bytes.
func PackFrequencyCommand(freqHz float32) []byte {
	buf := make([]byte, ControlMessageSize)
	binary.BigEndian.PutUint32(buf[0:4], math.Float32bits(freqHz))
	return buf
}

// EndStopSize is the 10-byte end-of-stream sentinel size.
const EndStopSize = 10

// PackEndStop builds the 10-byte END_STOP sentinel.
func PackEndStop() []byte {
	buf := make([]byte, EndStopSize)
	copy(buf, endStopPrefix)
	return buf
}

// IsEndStop reports whether buf is the 10-byte END_STOP sentinel.
func IsEndStop(buf []byte) bool {
	return len(buf) == EndStopSize && bytesHasPrefix(buf, endStopPrefix)
}

// HasEndStopPrefix reports whether buf begins with the 8-byte "END_STOP"
// marker, regardless of buf's total length. Per-device data streams read
// fixed-size records larger than 10 bytes (e.g. 36-byte sensor records),
// so the sentinel is recognized the same way the legacy composite packet
// pads it: by prefix, within a record-sized buffer (spec.md §9).
func HasEndStopPrefix(buf []byte) bool {
	return bytesHasPrefix(buf, []byte("END_STOP"))
}

// PackEndStopPadded builds an END_STOP sentinel zero-padded to size
// bytes, so a per-device consumer's fixed-size read succeeds on the
// sentinel exactly as it would on a real record (spec.md §9's composite
// padding idea, generalized to the per-device port model).
func PackEndStopPadded(size int) []byte {
	buf := make([]byte, size)
	copy(buf, endStopPrefix)
	return buf
}

func bytesHasPrefix(buf, prefix []byte) bool {
	if len(buf) < len(prefix) {
		return false
	}
	for i := range prefix {
		if buf[i] != prefix[i] {
			return false
		}
	}
	return true
}
