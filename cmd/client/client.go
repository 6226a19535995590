// Command client runs the acquisition node of spec.md §2: one governor
// per device class, each owning its devices, its DoubleBuffer, and its
// producer/consumer tasks. The controller (spec.md §6's `bmi`) accepts
// exactly one control connection (BMICode.py's `jetsonSocket.listen(1)`
// / single `accept()`), so this client dials out once and fans the
// decoded commands out to every governor from a single reader goroutine
// rather than racing several readers over the same socket. Flag
// handling uses spf13/pflag (wired per SPEC_FULL.md DOMAIN STACK) for
// GNU-style long flags, matching the ecosystem convention pflag exists
// to provide.
package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/fieldsync/fieldsync/internal/config"
	"github.com/fieldsync/fieldsync/internal/devices"
	"github.com/fieldsync/fieldsync/internal/governor"
	"github.com/fieldsync/fieldsync/internal/logging"
	"github.com/fieldsync/fieldsync/internal/wire"
)

func main() {
	configPath := pflag.StringP("config", "c", "settings.yaml", "path to the YAML settings document")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "client: fatal init error:", err)
		os.Exit(1)
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	out := io.Writer(os.Stderr)
	if cfg.Logging.File != "" {
		rf, err := logging.NewRotatingFile(cfg.Logging.File, cfg.Logging.MaxSizeMB)
		if err != nil {
			fmt.Fprintln(os.Stderr, "client: fatal init error:", err)
			os.Exit(1)
		}
		defer rf.Close()
		out = io.MultiWriter(os.Stderr, rf)
	}
	log := logging.New(out, level, "client")

	if err := run(cfg, log); err != nil {
		log.Error("client: fatal", "err", err)
		os.Exit(1)
	}
}

// acquisition bundles every governor this client node drives, so the
// single control-connection reader can dispatch a decoded command to
// all of them without any governor touching the socket directly.
type acquisition struct {
	sensors    [2]*governor.SensorGovernor
	camera     *governor.CameraGovernor
	microphone *governor.MicrophoneGovernor
	speaker    *governor.SpeakerGovernor
	aux        []*governor.AuxGovernor
}

func (a *acquisition) requestTermination() {
	a.sensors[0].Lifecycle().RequestTermination()
	a.sensors[1].Lifecycle().RequestTermination()
	a.camera.Lifecycle().RequestTermination()
	a.microphone.Lifecycle().RequestTermination()
	a.speaker.Lifecycle().RequestTermination()
	a.speaker.Lifecycle().SetState(governor.StateStopped)
	for _, g := range a.aux {
		g.Lifecycle().RequestTermination()
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	gatewayAddr := fmt.Sprintf("%s:%d", cfg.Ingestor.IP, cfg.Ingestor.GatewayPort)
	capacity := cfg.Buffer.Capacity()

	var status *devices.StatusLine
	if cfg.Client.GPIOStatusLine != "" {
		offset, err := strconv.Atoi(cfg.Client.GPIOStatusLine)
		if err != nil {
			log.Warn("gpio status line is not a line number, continuing without it", "line", cfg.Client.GPIOStatusLine)
		} else if sl, err := devices.NewStatusLine("gpiochip0", offset); err != nil {
			log.Warn("gpio status line unavailable, continuing without it", "err", err)
		} else {
			status = sl
			defer status.Close()
		}
	}

	a := &acquisition{}
	for i := 0; i < 2; i++ {
		poller := devices.NewSimulatedPoller(cfg.Sensor.I2CAddr[i])
		sensor := devices.NewSensor(uint32(i), poller)
		if err := sensor.Start(); err != nil {
			return fmt.Errorf("init: sensor %d: %w", i, err)
		}
		a.sensors[i] = governor.NewSensorGovernor(uint32(i), sensor, capacity, cfg.Buffer.Framerate, gatewayAddr, cfg.Buffer.DropIfFull, log)
	}

	cam := devices.NewCamera(
		devices.NewSimulatedFrameSource(cfg.Camera.Ident),
		cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.Channels, cfg.Camera.Overlay,
	)
	a.camera = governor.NewCameraGovernor(0, cam, capacity, cfg.Buffer.Framerate, gatewayAddr, cfg.Buffer.DropIfFull, log)
	if cfg.Client.CameraSHMTee != "" {
		if err := a.camera.EnableLocalTee(cfg.Client.CameraSHMTee); err != nil {
			log.Warn("camera shm tee unavailable, continuing without it", "err", err)
		}
	}

	micFrameSize := cfg.Audio.Rate / int(cfg.Buffer.Framerate)
	mic, err := devices.NewMicrophone(float64(cfg.Audio.Rate), micFrameSize)
	if err != nil {
		return fmt.Errorf("init: microphone: %w", err)
	}
	if err := mic.Start(); err != nil {
		return fmt.Errorf("init: microphone start: %w", err)
	}
	a.microphone = governor.NewMicrophoneGovernor(0, mic, capacity, gatewayAddr, cfg.Buffer.DropIfFull, log)

	speaker, err := devices.NewSpeaker(float64(cfg.Audio.Rate), cfg.Speaker.BlockSize, cfg.Speaker.Amplitude)
	if err != nil {
		return fmt.Errorf("init: speaker: %w", err)
	}
	if err := speaker.Start(); err != nil {
		return fmt.Errorf("init: speaker start: %w", err)
	}
	a.speaker = governor.NewSpeakerGovernor(speaker, log)
	a.speaker.Lifecycle().SetState(governor.StateRunning)

	for i, name := range cfg.Aux.Names {
		var src devices.AuxSource
		if i < len(cfg.Aux.PSUAddrs) && cfg.Aux.PSUAddrs[i] != "" {
			psu := devices.NewPSUAuxChannel(cfg.Aux.PSUAddrs[i])
			if err := psu.Connect(); err != nil {
				log.Warn("aux PSU channel unavailable, falling back to simulated", "name", name, "err", err)
				src = devices.NewAuxChannel(name)
			} else {
				src = psu
			}
		} else {
			src = devices.NewAuxChannel(name)
		}
		a.aux = append(a.aux, governor.NewAuxGovernor(uint32(i), src, capacity, cfg.Buffer.Framerate, gatewayAddr, cfg.Buffer.DropIfFull, log))
	}

	bmiAddr := fmt.Sprintf("%s:%d", cfg.BMI.IP, cfg.BMI.ListenPort)
	bmiConn, err := net.Dial("tcp", bmiAddr)
	if err != nil {
		return fmt.Errorf("init: controller connection to %s: %w", bmiAddr, err)
	}

	go a.sensors[0].Producer()
	go a.sensors[0].Consumer()
	go a.sensors[1].Producer()
	go a.sensors[1].Consumer()
	go a.camera.Producer()
	go a.camera.Consumer()
	go a.microphone.Producer()
	go a.microphone.Consumer()
	for _, g := range a.aux {
		go g.Producer()
		go g.Consumer()
	}

	if status != nil {
		go reportStatus(status, a.sensors[0].Lifecycle())
	}

	return a.serveControl(bmiConn, log)
}

// serveControl is the client's single control-connection reader
// (spec.md §4.4 task 3, applied across every governor this process
// owns rather than per-governor): BEGIN_STOP fans termination out to
// all governors, any other message is a frequency command applied to
// the speaker.
func (a *acquisition) serveControl(conn net.Conn, log *logging.Logger) error {
	for {
		buf, err := wire.RecvAll(conn, wire.ControlMessageSize)
		if err != nil {
			return fmt.Errorf("control: read: %w", err)
		}
		msg, err := wire.DecodeControlMessage(buf)
		if err != nil {
			log.Error("control: decode failed", "err", err)
			continue
		}
		if msg.IsBeginStop {
			a.requestTermination()
			return nil
		}
		if msg.IsBeginExperiment {
			continue
		}
		a.speaker.Device().SetFrequency(msg.FrequencyHz)
	}
}

func reportStatus(status *devices.StatusLine, life *governor.Lifecycle) {
	for {
		running := life.State() == governor.StateRunning
		if err := status.SetRunning(running); err != nil {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}
