// Package wire implements the client<->ingestor and controller<->client
// framing from spec.md §6, grounded on the teacher's big-endian binary
// packing style (hardware_control.go's PCIe register encoding,
// psu_keysight.go's bufio-wrapped net.Conn) and on
// original_source/src/governors.py's struct.pack layouts.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/fieldsync/fieldsync/internal/clock"
)

// Pose is the planar position/heading triple produced by a sensor
// (spec.md §3).
type Pose struct {
	X, Y, H float64
}

// SensorRecord is one odometry sample. Idx identifies which of the two
// sensors produced it and must be 0 or 1 (spec.md §3 invariant).
type SensorRecord struct {
	Ts  clock.Timestamp
	X   float64
	Y   float64
	H   float64
	Idx uint32
}

// SensorRecordSize is the 36-byte wire size of a packed SensorRecord
// (spec.md §6): f64 ts, f64 x, f64 y, f64 h, u32 idx.
const SensorRecordSize = 8 + 8 + 8 + 8 + 4

// Pack serializes r as 36 big-endian bytes.
func (r SensorRecord) Pack() []byte {
	buf := make([]byte, SensorRecordSize)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(float64(r.Ts)))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(r.X))
	binary.BigEndian.PutUint64(buf[16:24], math.Float64bits(r.Y))
	binary.BigEndian.PutUint64(buf[24:32], math.Float64bits(r.H))
	binary.BigEndian.PutUint32(buf[32:36], r.Idx)
	return buf
}

// UnpackSensorRecord decodes a 36-byte big-endian buffer into a
// SensorRecord. It returns an error if buf is the wrong length
// (spec.md §7 Protocol: record length mismatch).
func UnpackSensorRecord(buf []byte) (SensorRecord, error) {
	if len(buf) != SensorRecordSize {
		return SensorRecord{}, fmt.Errorf("wire: sensor record must be %d bytes, got %d", SensorRecordSize, len(buf))
	}
	return SensorRecord{
		Ts:  clock.Timestamp(math.Float64frombits(binary.BigEndian.Uint64(buf[0:8]))),
		X:   math.Float64frombits(binary.BigEndian.Uint64(buf[8:16])),
		Y:   math.Float64frombits(binary.BigEndian.Uint64(buf[16:24])),
		H:   math.Float64frombits(binary.BigEndian.Uint64(buf[24:32])),
		Idx: binary.BigEndian.Uint32(buf[32:36]),
	}, nil
}

// AudioFrame is one microphone capture unit: a fixed number of 16-bit LE
// samples (spec.md §3/§4.3).
type AudioFrame struct {
	Ts      clock.Timestamp
	Samples []byte // 16-bit LE samples, length == expected size for the device
}

// AuxFrame is one auxiliary scalar channel sample (spec.md §3).
type AuxFrame struct {
	Ts    clock.Timestamp
	Value [8]byte
}

// CameraFrame is one raw pixel payload plus its monotonic capture
// timestamp (spec.md §3); the monotonic value is only used locally for
// scheduling/overlay purposes and is never transmitted.
type CameraFrame struct {
	Ts      clock.MonotonicNs
	Payload []byte // width*height*channels raw bytes
}

// CameraRecord is the wire-transmitted counterpart of a CameraFrame: the
// monotonic timestamp is replaced with a wall-clock Timestamp, since
// MonotonicNs has no cross-process meaning (spec.md §3).
type CameraRecord struct {
	Ts      clock.Timestamp
	Payload []byte
}

// Pack serializes an AudioFrame as an 8-byte big-endian timestamp
// followed by the raw sample bytes.
func (a AudioFrame) Pack() []byte {
	buf := make([]byte, 8+len(a.Samples))
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(float64(a.Ts)))
	copy(buf[8:], a.Samples)
	return buf
}

// UnpackAudioFrame decodes a buffer produced by AudioFrame.Pack, given
// the device's fixed per-frame sample byte count.
func UnpackAudioFrame(buf []byte, sampleBytes int) (AudioFrame, error) {
	if len(buf) != 8+sampleBytes {
		return AudioFrame{}, fmt.Errorf("wire: audio frame must be %d bytes, got %d", 8+sampleBytes, len(buf))
	}
	return AudioFrame{
		Ts:      clock.Timestamp(math.Float64frombits(binary.BigEndian.Uint64(buf[0:8]))),
		Samples: append([]byte(nil), buf[8:]...),
	}, nil
}

// Pack serializes an AuxFrame as an 8-byte timestamp followed by the
// 8-byte scalar value (16 bytes total).
func (a AuxFrame) Pack() []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(float64(a.Ts)))
	copy(buf[8:16], a.Value[:])
	return buf
}

// AuxFrameSize is the fixed 16-byte wire size of an AuxFrame.
const AuxFrameSize = 16

// UnpackAuxFrame decodes a 16-byte buffer produced by AuxFrame.Pack.
func UnpackAuxFrame(buf []byte) (AuxFrame, error) {
	if len(buf) != AuxFrameSize {
		return AuxFrame{}, fmt.Errorf("wire: aux frame must be %d bytes, got %d", AuxFrameSize, len(buf))
	}
	var f AuxFrame
	f.Ts = clock.Timestamp(math.Float64frombits(binary.BigEndian.Uint64(buf[0:8])))
	copy(f.Value[:], buf[8:16])
	return f, nil
}

// Pack serializes a CameraRecord as an 8-byte timestamp followed by the
// raw pixel payload.
func (c CameraRecord) Pack() []byte {
	buf := make([]byte, 8+len(c.Payload))
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(float64(c.Ts)))
	copy(buf[8:], c.Payload)
	return buf
}

// UnpackCameraRecord decodes a buffer produced by CameraRecord.Pack,
// given the device's fixed payload size (width*height*channels).
func UnpackCameraRecord(buf []byte, payloadSize int) (CameraRecord, error) {
	if len(buf) != 8+payloadSize {
		return CameraRecord{}, fmt.Errorf("wire: camera record must be %d bytes, got %d", 8+payloadSize, len(buf))
	}
	return CameraRecord{
		Ts:      clock.Timestamp(math.Float64frombits(binary.BigEndian.Uint64(buf[0:8]))),
		Payload: append([]byte(nil), buf[8:]...),
	}, nil
}
