package devices

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Microphone wraps a blocking audio capture stream at period
// rate/framerate (spec.md §4.3), grounded on gordonklaus/portaudio usage
// in the retrieval pack (doismellburning-samoyed, other_examples client)
// and on original_source/src/Microphone.py's blocking read loop.
type Microphone struct {
	mu         sync.Mutex
	stream     *portaudio.Stream
	rate       float64
	frameSize  int // rate / framerate, in samples
	buf        []int16
}

// NewMicrophone opens a mono input stream at rate sampling frameSize
// samples per read (spec.md §4.3: "period = rate/framerate").
func NewMicrophone(rate float64, frameSize int) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("devices: portaudio init: %w", err)
	}
	m := &Microphone{rate: rate, frameSize: frameSize, buf: make([]int16, frameSize)}
	stream, err := portaudio.OpenDefaultStream(1, 0, rate, frameSize, m.buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("devices: open audio stream: %w", err)
	}
	m.stream = stream
	return m, nil
}

// Start begins the capture stream.
func (m *Microphone) Start() error {
	if err := m.stream.Start(); err != nil {
		return fmt.Errorf("devices: start audio stream: %w", err)
	}
	return nil
}

// Stop halts the capture stream.
func (m *Microphone) Stop() error {
	return m.stream.Stop()
}

// Close releases the stream and the portaudio runtime.
func (m *Microphone) Close() error {
	err := m.stream.Close()
	portaudio.Terminate()
	return err
}

// ReadFrame blocks for one period and returns frameSize 16-bit LE
// samples, packed as raw bytes matching spec.md §3's AudioFrame payload.
func (m *Microphone) ReadFrame() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.stream.Read(); err != nil {
		return nil, fmt.Errorf("devices: audio read: %w", err)
	}
	out := make([]byte, len(m.buf)*2)
	for i, s := range m.buf {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out, nil
}

// FrameByteSize returns the fixed payload size for this device
// (spec.md §3 invariant: len(payload) == expected_size).
func (m *Microphone) FrameByteSize() int {
	return m.frameSize * 2
}
