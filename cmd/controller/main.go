// Command controller is the lifecycle driver of spec.md §2/§6: it
// accepts the client's single control connection, sweeps speaker
// frequencies, then issues BEGIN_STOP. The frequency sweep itself
// (a fixed ramp with a sleep between steps) mirrors BMICode.py; the
// spec explicitly leaves choosing *which* frequencies to drive as the
// controller's policy and out of scope, so the sweep bounds are plain
// flags rather than a configured experiment plan. Flag handling uses
// spf13/pflag (wired per SPEC_FULL.md DOMAIN STACK), matching
// cmd/client's convention.
package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/fieldsync/fieldsync/internal/config"
	"github.com/fieldsync/fieldsync/internal/logging"
	"github.com/fieldsync/fieldsync/internal/wire"
)

func main() {
	configPath := pflag.StringP("config", "c", "settings.yaml", "path to the YAML settings document")
	startHz := pflag.Float64("start-hz", 500, "starting speaker frequency")
	endHz := pflag.Float64("end-hz", 10000, "frequency sweep ceiling (exclusive)")
	stepHz := pflag.Float64("step-hz", 100, "frequency increment per sweep tick")
	stepInterval := pflag.Duration("step-interval", time.Second/30, "delay between sweep ticks")
	holdDuration := pflag.Duration("hold", 31*time.Second, "time to hold at 0 Hz before stopping")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "controller: fatal init error:", err)
		os.Exit(1)
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	out := io.Writer(os.Stderr)
	if cfg.Logging.File != "" {
		rf, err := logging.NewRotatingFile(cfg.Logging.File, cfg.Logging.MaxSizeMB)
		if err != nil {
			fmt.Fprintln(os.Stderr, "controller: fatal init error:", err)
			os.Exit(1)
		}
		defer rf.Close()
		out = io.MultiWriter(os.Stderr, rf)
	}
	log := logging.New(out, level, "controller")

	sweep := frequencySweep{
		startHz:      *startHz,
		endHz:        *endHz,
		stepHz:       *stepHz,
		stepInterval: *stepInterval,
		holdDuration: *holdDuration,
	}
	if err := run(cfg, sweep, log); err != nil {
		log.Error("controller: fatal", "err", err)
		os.Exit(1)
	}
}

type frequencySweep struct {
	startHz      float64
	endHz        float64
	stepHz       float64
	stepInterval time.Duration
	holdDuration time.Duration
}

func run(cfg *config.Config, sweep frequencySweep, log *logging.Logger) error {
	addr := fmt.Sprintf("%s:%d", cfg.BMI.IP, cfg.BMI.ListenPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("init: listen on %s: %w", addr, err)
	}
	defer ln.Close()

	log.Info("controller: listening for client", "addr", addr)
	conn, err := ln.Accept()
	if err != nil {
		return fmt.Errorf("init: accept client connection: %w", err)
	}
	defer conn.Close()
	log.Info("controller: client connected", "remote", conn.RemoteAddr())

	return driveExperiment(conn, sweep, log)
}

// driveExperiment runs the frequency ramp, holds at silence, then sends
// BEGIN_STOP, exactly BMICode.py's sequence generalized to configurable
// sweep bounds.
func driveExperiment(conn net.Conn, sweep frequencySweep, log *logging.Logger) error {
	for freq := sweep.startHz; freq < sweep.endHz; freq += sweep.stepHz {
		if err := wire.SendAll(conn, wire.PackFrequencyCommand(float32(freq))); err != nil {
			return fmt.Errorf("sweep: send frequency %.1f: %w", freq, err)
		}
		time.Sleep(sweep.stepInterval)
	}

	if err := wire.SendAll(conn, wire.PackFrequencyCommand(0)); err != nil {
		return fmt.Errorf("sweep: send silence: %w", err)
	}
	time.Sleep(sweep.holdDuration)

	log.Info("controller: sending BEGIN_STOP")
	if err := wire.SendAll(conn, wire.PackBeginStop()); err != nil {
		return fmt.Errorf("stop: send BEGIN_STOP: %w", err)
	}
	return nil
}
