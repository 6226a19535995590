package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/fieldsync/fieldsync/internal/clock"
)

// CompositePacket is the legacy combined-mode client packet documented
// for backwards interop only (spec.md §4.5 Rationale, §9 Design notes).
// The canonical design is the per-device port model; this repo's client
// never produces CompositePacket. UnpackCompositePacket decodes one, but
// the ingestor's consumers do not call it.
type CompositePacket struct {
	FrameCount uint32
	SentTs     clock.Timestamp
	AudioTs    clock.Timestamp
	AuxTs      [4]clock.Timestamp
	Audio      []byte // 2 * (rate/framerate) bytes
	Aux        [4][8]byte
}

// CompositePacketSize computes the fixed packet size for a given
// audioSampleCount (rate/framerate), per spec.md §6's composite layout:
// u32 | f64*6 | audio_bytes | aux1..aux4[8].
func CompositePacketSize(audioSampleCount int) int {
	return 4 + 8*6 + 2*audioSampleCount + 8*4
}

// UnpackCompositePacket decodes buf using audioSampleCount samples of
// 16-bit audio.
func UnpackCompositePacket(buf []byte, audioSampleCount int) (CompositePacket, error) {
	want := CompositePacketSize(audioSampleCount)
	if len(buf) != want {
		return CompositePacket{}, fmt.Errorf("wire: composite packet must be %d bytes, got %d", want, len(buf))
	}

	off := 0
	readU32 := func() uint32 {
		v := binary.BigEndian.Uint32(buf[off : off+4])
		off += 4
		return v
	}
	readF64 := func() clock.Timestamp {
		v := math.Float64frombits(binary.BigEndian.Uint64(buf[off : off+8]))
		off += 8
		return clock.Timestamp(v)
	}

	p := CompositePacket{}
	p.FrameCount = readU32()
	p.SentTs = readF64()
	p.AudioTs = readF64()
	for i := 0; i < 4; i++ {
		p.AuxTs[i] = readF64()
	}

	audioLen := 2 * audioSampleCount
	p.Audio = make([]byte, audioLen)
	copy(p.Audio, buf[off:off+audioLen])
	off += audioLen

	for i := 0; i < 4; i++ {
		copy(p.Aux[i][:], buf[off:off+8])
		off += 8
	}

	return p, nil
}
