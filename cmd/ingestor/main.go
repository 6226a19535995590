// Command ingestor runs the receiver node of spec.md §4.5: the gateway
// listener, the per-device consumers it spawns, and (optionally) the
// mDNS advertisement. It does not start the HTTP status API
// (internal/httpapi) or the live dashboard (internal/dashboard). Flag
// handling follows the teacher's main.go convention of the stdlib flag
// package.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/fieldsync/fieldsync/internal/config"
	"github.com/fieldsync/fieldsync/internal/ingestor"
	"github.com/fieldsync/fieldsync/internal/logging"
	"github.com/fieldsync/fieldsync/internal/wire"
)

func main() {
	configPath := flag.String("config", "settings.yaml", "path to the YAML settings document")
	outputDir := flag.String("out", "./data", "root directory for per-device output files")
	status := flag.Bool("status", false, "print admitted sessions from the manifest and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ingestor: fatal init error:", err)
		os.Exit(1)
	}

	if *status {
		if err := printStatus(cfg, *outputDir); err != nil {
			fmt.Fprintln(os.Stderr, "ingestor: status:", err)
			os.Exit(1)
		}
		return
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	out := io.Writer(os.Stderr)
	if cfg.Logging.File != "" {
		rf, err := logging.NewRotatingFile(cfg.Logging.File, cfg.Logging.MaxSizeMB)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ingestor: fatal init error:", err)
			os.Exit(1)
		}
		defer rf.Close()
		out = io.MultiWriter(os.Stderr, rf)
	}
	log := logging.New(out, level, "ingestor")

	if err := run(cfg, *outputDir, log); err != nil {
		log.Error("ingestor: fatal", "err", err)
		os.Exit(1)
	}
}

// printStatus renders the manifest's currently-open sessions as a table
// (spec.md §6's admitted-session bookkeeping, surfaced for an operator
// without requiring a running ingestor): one row per session, with the
// bytes written so far and time since admission in human terms rather
// than raw counters.
func printStatus(cfg *config.Config, outputDir string) error {
	if cfg.Ingestor.ManifestDB == "" {
		return fmt.Errorf("ingestor.manifest_db not configured")
	}
	manifest, err := ingestor.OpenManifest(cfg.Ingestor.ManifestDB)
	if err != nil {
		return err
	}
	defer manifest.Close()

	sessions, err := manifest.ListOpen()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Session", "Kind", "Ident", "Admitted", "Bytes Written"})
	for _, s := range sessions {
		admittedAt, err := time.Parse(time.RFC3339Nano, s.AdmittedAt)
		admitted := s.AdmittedAt
		if err == nil {
			admitted = humanize.Time(admittedAt)
		}

		// Same layout as ingestor.NewFileWriter.
		kindDir := filepath.Join(outputDir, s.Kind)
		var target string
		switch wire.DeviceKind(s.Kind) {
		case wire.KindSensor:
			target = filepath.Join(kindDir, fmt.Sprintf("sensor%d.csv", s.Ident+1))
		case wire.KindAux:
			target = filepath.Join(kindDir, fmt.Sprintf("aux%d.csv", s.Ident))
		case wire.KindMicrophone:
			target = filepath.Join(kindDir, fmt.Sprintf("mic%d.raw", s.Ident))
		default:
			target = filepath.Join(kindDir, fmt.Sprintf("camera%d", s.Ident))
		}
		size, _ := ingestor.DirSize(target)

		table.Append([]string{
			s.ID[:8],
			s.Kind,
			fmt.Sprintf("%d", s.Ident),
			admitted,
			humanize.Bytes(size),
		})
	}
	if len(sessions) == 0 {
		fmt.Println("ingestor: no open sessions")
		return nil
	}
	table.Render()
	return nil
}

func run(cfg *config.Config, outputDir string, log *logging.Logger) error {
	if err := ingestor.CheckDiskSpace(outputDir, ingestor.MinFreeBytesDefault); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	var manifest *ingestor.Manifest
	if cfg.Ingestor.ManifestDB != "" {
		m, err := ingestor.OpenManifest(cfg.Ingestor.ManifestDB)
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
		defer m.Close()
		manifest = m
	}

	var archiver *ingestor.Archiver
	if cfg.Ingestor.Archive.Enabled {
		a, err := ingestor.NewArchiver(context.Background(), cfg.Ingestor.Archive)
		if err != nil {
			log.Error("archive: init failed, continuing without archival", "err", err)
		} else {
			archiver = a
		}
	}

	pool := ingestor.NewSessionPool()
	ports := ingestor.NewPortAllocator(cfg.Ingestor.DataPortRangeStart, cfg.Ingestor.DataPortRangeEnd)

	spawn := func(session *ingestor.DeviceSession) {
		if manifest != nil {
			if err := manifest.RecordAdmission(session); err != nil {
				log.Error("manifest: record admission failed", "err", err)
			}
		}

		out, err := ingestor.NewFileWriter(outputDir, session.Kind, session.Ident)
		if err != nil {
			log.Error("consumer: output setup failed", "session", session.ID, "err", err)
			session.DataConn.Close()
			return
		}

		audioSampleBytes := 2 * cfg.Audio.Rate / int(cfg.Buffer.Framerate)
		cameraPayload := cfg.Camera.Width * cfg.Camera.Height * cfg.Camera.Channels
		consumer := ingestor.NewConsumer(session, out, audioSampleBytes, cameraPayload, log)

		go func() {
			consumer.Run()
			if manifest != nil {
				if err := manifest.RecordClosed(session.ID.String()); err != nil {
					log.Error("manifest: record closed failed", "err", err)
				}
			}
			if archiver != nil {
				if err := archiver.UploadDir(context.Background(), outputDir); err != nil {
					log.Error("archive: upload failed", "err", err)
				}
			}
		}()
	}

	gatewayAddr := fmt.Sprintf("%s:%d", cfg.Ingestor.IP, cfg.Ingestor.GatewayPort)
	gw, err := ingestor.NewGateway(gatewayAddr, ports, pool, spawn, log)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer gw.Close()

	if cfg.Ingestor.MDNSName != "" {
		go func() {
			ctx := context.Background()
			if err := ingestor.AdvertiseGateway(ctx, cfg.Ingestor.MDNSName, int(cfg.Ingestor.GatewayPort), log); err != nil {
				log.Error("mdns: advertise failed", "err", err)
			}
		}()
	}

	log.Info("ingestor: gateway listening", "addr", gatewayAddr)
	return gw.Serve()
}
