package ingestor

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fieldsync/fieldsync/internal/logging"
	"github.com/fieldsync/fieldsync/internal/wire"
)

// DeviceWriter appends one decoded record to its channel-appropriate
// output file (spec.md §4.5/§6: CSV for scalar records, binary-append
// for audio, still-frame/container for video).
type DeviceWriter interface {
	WriteSensor(r wire.SensorRecord) error
	WriteAudio(f wire.AudioFrame) error
	WriteAux(f wire.AuxFrame) error
	WriteCamera(r wire.CameraRecord) error
	Close() error
}

// Consumer owns one admitted DeviceSession end to end: it decodes typed
// records off session.DataConn until an END_STOP sentinel or a read
// error, writing each to out. A protocol error or END_STOP terminates
// only this stream's consumer, never the ingestor process (spec.md §7).
type Consumer struct {
	session *DeviceSession
	out     DeviceWriter
	log     *logging.Logger

	sensorRecordSize int
	audioSampleBytes int
	cameraPayload    int
}

// NewConsumer builds a consumer for session, writing decoded records to
// out. audioSampleBytes and cameraPayload are the device's fixed
// per-record payload sizes (spec.md §3 invariant), ignored for kinds
// that don't need them.
func NewConsumer(session *DeviceSession, out DeviceWriter, audioSampleBytes, cameraPayload int, log *logging.Logger) *Consumer {
	return &Consumer{
		session:          session,
		out:              out,
		log:              log,
		audioSampleBytes: audioSampleBytes,
		cameraPayload:    cameraPayload,
	}
}

// Run decodes and appends records until END_STOP or a fatal read error
// (spec.md §4.5 "per-device consumer").
func (c *Consumer) Run() {
	defer c.out.Close()
	defer c.session.DataConn.Close()

	for {
		recordSize, err := c.recordSizeForKind()
		if err != nil {
			c.log.Error("consumer: unsupported device kind", "kind", c.session.Kind, "err", err)
			return
		}

		buf, err := wire.RecvAll(c.session.DataConn, recordSize)
		if err != nil {
			c.log.Info("consumer: stream ended", "session", c.session.ID, "kind", c.session.Kind, "err", err)
			return
		}
		if wire.HasEndStopPrefix(buf) {
			c.log.Info("consumer: END_STOP received", "session", c.session.ID, "kind", c.session.Kind)
			return
		}

		if err := c.decodeAndWrite(buf); err != nil {
			c.log.Error("consumer: record decode/write failed", "session", c.session.ID, "err", err)
			return
		}
	}
}

func (c *Consumer) recordSizeForKind() (int, error) {
	switch c.session.Kind {
	case wire.KindSensor:
		return wire.SensorRecordSize, nil
	case wire.KindMicrophone:
		return 8 + c.audioSampleBytes, nil
	case wire.KindAux:
		return wire.AuxFrameSize, nil
	case wire.KindCamera:
		return 8 + c.cameraPayload, nil
	default:
		return 0, fmt.Errorf("ingestor: unknown device kind %q", c.session.Kind)
	}
}

func (c *Consumer) decodeAndWrite(buf []byte) error {
	switch c.session.Kind {
	case wire.KindSensor:
		rec, err := wire.UnpackSensorRecord(buf)
		if err != nil {
			return err
		}
		return c.out.WriteSensor(rec)
	case wire.KindMicrophone:
		frame, err := wire.UnpackAudioFrame(buf, c.audioSampleBytes)
		if err != nil {
			return err
		}
		return c.out.WriteAudio(frame)
	case wire.KindAux:
		frame, err := wire.UnpackAuxFrame(buf)
		if err != nil {
			return err
		}
		return c.out.WriteAux(frame)
	case wire.KindCamera:
		rec, err := wire.UnpackCameraRecord(buf, c.cameraPayload)
		if err != nil {
			return err
		}
		return c.out.WriteCamera(rec)
	default:
		return fmt.Errorf("ingestor: unknown device kind %q", c.session.Kind)
	}
}

// FileWriter is the default DeviceWriter: CSV for sensor/aux records,
// raw binary append for audio, a sequence of raw frame files for
// camera (spec.md §6 "Persisted state").
type FileWriter struct {
	sensorCSV  *bufio.Writer
	sensorFile *os.File
	auxCSV     *bufio.Writer
	auxFile    *os.File
	audioFile  *os.File
	cameraDir  string
	cameraSeq  int
}

// NewFileWriter opens the output destination for one session under
// baseDir/<kind>: sensor<ident+1>.csv, aux<ident>.csv, mic<ident>.raw,
// or the directory camera<ident>.
func NewFileWriter(baseDir string, kind wire.DeviceKind, ident uint32) (*FileWriter, error) {
	dir := filepath.Join(baseDir, string(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ingestor: mkdir %s: %w", dir, err)
	}
	fw := &FileWriter{}
	switch kind {
	case wire.KindSensor:
		// Sensor files are named with 1-based channel numbers (spec.md
		// §6 scenario 2: idx=1 appends to "sensor2.csv"), unlike every
		// other device kind's 0-based ident.
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("sensor%d.csv", ident+1)))
		if err != nil {
			return nil, err
		}
		fw.sensorFile = f
		fw.sensorCSV = bufio.NewWriter(f)
	case wire.KindAux:
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("aux%d.csv", ident)))
		if err != nil {
			return nil, err
		}
		fw.auxFile = f
		fw.auxCSV = bufio.NewWriter(f)
	case wire.KindMicrophone:
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("mic%d.raw", ident)))
		if err != nil {
			return nil, err
		}
		fw.audioFile = f
	case wire.KindCamera:
		camDir := filepath.Join(dir, fmt.Sprintf("camera%d", ident))
		if err := os.MkdirAll(camDir, 0o755); err != nil {
			return nil, err
		}
		fw.cameraDir = camDir
	}
	return fw, nil
}

// formatDecimal renders v in plain decimal form, never scientific
// notation, with a trailing ".0" on integral values (spec.md §6
// scenario 2's exact line: "1700000000000.0,1.5,-2.25,0.0"). %v on a
// float64 falls back to %g past a magnitude threshold, which would
// render a timestamp like 1.7e12 as "1.7e+12" instead.
func formatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// WriteSensor appends one "ts,x,y,h\n" line (spec.md §6 scenario 2).
func (f *FileWriter) WriteSensor(r wire.SensorRecord) error {
	if f.sensorCSV == nil {
		return fmt.Errorf("ingestor: file writer not configured for sensor records")
	}
	_, err := fmt.Fprintf(f.sensorCSV, "%s,%s,%s,%s\n",
		formatDecimal(float64(r.Ts)), formatDecimal(r.X), formatDecimal(r.Y), formatDecimal(r.H))
	return err
}

// WriteAudio appends raw sample bytes.
func (f *FileWriter) WriteAudio(fr wire.AudioFrame) error {
	if f.audioFile == nil {
		return fmt.Errorf("ingestor: file writer not configured for audio frames")
	}
	_, err := f.audioFile.Write(fr.Samples)
	return err
}

// WriteAux appends one "ts,value_hex\n" line.
func (f *FileWriter) WriteAux(fr wire.AuxFrame) error {
	if f.auxCSV == nil {
		return fmt.Errorf("ingestor: file writer not configured for aux frames")
	}
	_, err := fmt.Fprintf(f.auxCSV, "%v,%x\n", float64(fr.Ts), fr.Value)
	return err
}

// WriteCamera writes one raw frame file per record (spec.md §6
// "still-frame... container file (optional)"; this writer uses the
// still-frame form).
func (f *FileWriter) WriteCamera(r wire.CameraRecord) error {
	if f.cameraDir == "" {
		return fmt.Errorf("ingestor: file writer not configured for camera records")
	}
	path := filepath.Join(f.cameraDir, fmt.Sprintf("frame_%08d_%v.raw", f.cameraSeq, float64(r.Ts)))
	f.cameraSeq++
	return os.WriteFile(path, r.Payload, 0o644)
}

// Close flushes buffered writers and closes every open file.
func (f *FileWriter) Close() error {
	var firstErr error
	flushClose := func(w *bufio.Writer, file *os.File) {
		if w != nil {
			if err := w.Flush(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if file != nil {
			if err := file.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	flushClose(f.sensorCSV, f.sensorFile)
	flushClose(f.auxCSV, f.auxFile)
	flushClose(nil, f.audioFile)
	return firstErr
}
