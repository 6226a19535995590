package wire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/fieldsync/fieldsync/internal/clock"
)

func finiteFloat(t *rapid.T, label string) float64 {
	for {
		f := rapid.Float64().Draw(t, label)
		if !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
	}
}

func TestSensorRecord_RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := SensorRecord{
			Ts:  clock.Timestamp(finiteFloat(rt, "ts")),
			X:   finiteFloat(rt, "x"),
			Y:   finiteFloat(rt, "y"),
			H:   finiteFloat(rt, "h"),
			Idx: uint32(rapid.IntRange(0, 1).Draw(rt, "idx")),
		}
		got, err := UnpackSensorRecord(r.Pack())
		require.NoError(rt, err)
		assert.Equal(rt, r, got)
	})
}

func TestUnpackSensorRecord_WrongSize(t *testing.T) {
	_, err := UnpackSensorRecord(make([]byte, 10))
	assert.Error(t, err)
}

func TestClientHello_RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		kind := rapid.SampledFrom([]DeviceKind{KindSensor, KindCamera}).Draw(rt, "kind")
		ident := uint32(rapid.Int32Range(0, math.MaxInt32).Draw(rt, "ident"))
		ts := clock.Timestamp(finiteFloat(rt, "ts"))

		h := ClientHello{Kind: kind, Ident: ident, Ts: ts}
		got, err := UnpackClientHello(h.Pack())
		require.NoError(rt, err)
		assert.Equal(rt, kind, got.Kind)
		assert.Equal(rt, ident, got.Ident)
		assert.Equal(rt, ts, got.Ts)
	})
}

func TestHandshakeReply_RoundTrip(t *testing.T) {
	port := uint16(42000)
	got, err := UnpackHandshakeReply(PackHandshakeReply(port))
	require.NoError(t, err)
	assert.Equal(t, port, got)
}

func TestControlMessage_BeginStop(t *testing.T) {
	msg, err := DecodeControlMessage(PackBeginStop())
	require.NoError(t, err)
	assert.True(t, msg.IsBeginStop)
}

func TestControlMessage_Frequency(t *testing.T) {
	msg, err := DecodeControlMessage(PackFrequencyCommand(750.0))
	require.NoError(t, err)
	assert.False(t, msg.IsBeginStop)
	assert.InDelta(t, 750.0, msg.FrequencyHz, 0.01)
}

func TestEndStop_RoundTrip(t *testing.T) {
	assert.True(t, IsEndStop(PackEndStop()))
	assert.False(t, IsEndStop(PackBeginStop()))
}

func TestCompositePacket_RoundTrip(t *testing.T) {
	const samples = 8
	p := CompositePacket{
		FrameCount: 99,
		SentTs:     clock.Timestamp(1.7e12),
		AudioTs:    clock.Timestamp(1.7e12),
	}
	p.Audio = make([]byte, 2*samples)
	for i := range p.Audio {
		p.Audio[i] = byte(i)
	}

	buf := make([]byte, CompositePacketSize(samples))
	// Hand-assemble using the same layout UnpackCompositePacket expects,
	// to exercise the decode path independent of an encoder (the client
	// never emits composite packets).
	writeU32 := func(off int, v uint32) {
		buf[off] = byte(v >> 24)
		buf[off+1] = byte(v >> 16)
		buf[off+2] = byte(v >> 8)
		buf[off+3] = byte(v)
	}
	writeF64 := func(off int, v float64) {
		bits := math.Float64bits(v)
		for i := 0; i < 8; i++ {
			buf[off+i] = byte(bits >> (56 - 8*i))
		}
	}
	writeU32(0, p.FrameCount)
	writeF64(4, float64(p.SentTs))
	writeF64(12, float64(p.AudioTs))
	copy(buf[4+8*6:], p.Audio)

	got, err := UnpackCompositePacket(buf, samples)
	require.NoError(t, err)
	assert.Equal(t, p.FrameCount, got.FrameCount)
	assert.Equal(t, p.Audio, got.Audio)
}
