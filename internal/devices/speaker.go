package devices

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// Speaker drives a local output audio stream at a commanded frequency
// (spec.md §4.3). The sine generator persists its sample-phase
// accumulator across callback invocations -- resetting it on each
// callback would produce audible discontinuities at frequency changes
// (spec.md §9 Design notes), grounded on the teacher's dsp.go phase-step
// accumulation and dummy_streamer.go's "phase += phaseStep" pattern.
type Speaker struct {
	stream    *portaudio.Stream
	amplitude float64
	rate      float64

	freqBits  uint64 // atomic float64 bits, read/written via math.Float64bits
	phase     float64 // accessed only from the audio callback goroutine
}

// NewSpeaker opens an output stream at rate with the given block size
// and per-sample amplitude.
func NewSpeaker(rate float64, blockSize int, amplitude float64) (*Speaker, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("devices: portaudio init: %w", err)
	}
	s := &Speaker{amplitude: amplitude, rate: rate}
	s.storeFreq(0)

	stream, err := portaudio.OpenDefaultStream(0, 1, rate, blockSize, func(outBuf []int16) {
		s.fill(outBuf)
	})
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("devices: open speaker stream: %w", err)
	}
	s.stream = stream
	return s, nil
}

// fill runs on the audio driver's thread (spec.md §5: "must not suspend
// except on trivially bounded arithmetic"). It computes
// amplitude*sin(2*pi*f*t), advancing t by the persistent phase
// accumulator so frequency changes never discontinuity-click.
func (s *Speaker) fill(out []int16) {
	freq := s.loadFreq()
	step := 2 * math.Pi * freq / s.rate
	for i := range out {
		out[i] = int16(s.amplitude * math.MaxInt16 * math.Sin(s.phase))
		s.phase += step
		if s.phase > 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
}

// SetFrequency updates the commanded tone frequency; safe to call
// concurrently with the audio callback.
func (s *Speaker) SetFrequency(f float32) {
	s.storeFreq(float64(f))
}

func (s *Speaker) storeFreq(f float64) {
	atomic.StoreUint64(&s.freqBits, math.Float64bits(f))
}

func (s *Speaker) loadFreq() float64 {
	return math.Float64frombits(atomic.LoadUint64(&s.freqBits))
}

// Start begins output.
func (s *Speaker) Start() error { return s.stream.Start() }

// Stop halts output; phase is intentionally left untouched so a
// subsequent Start resumes without a click.
func (s *Speaker) Stop() error { return s.stream.Stop() }

// Close releases the stream and the portaudio runtime.
func (s *Speaker) Close() error {
	err := s.stream.Close()
	portaudio.Terminate()
	return err
}
