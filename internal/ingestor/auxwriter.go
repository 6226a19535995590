package ingestor

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/segmentio/parquet-go"

	"github.com/fieldsync/fieldsync/internal/wire"
)

// AuxRow is the columnar schema for archived auxiliary scalar samples,
// grounded on the teacher's CaptureSample/NewParquetWriter pattern
// (parquet_writer.go), generalized from a fixed 8-channel RF schema down
// to this system's single-channel aux stream.
type AuxRow struct {
	Ts    float64 `parquet:"ts"`
	Value int64   `parquet:"value"`
}

// AuxParquetWriter appends AuxFrame samples as parquet rows, an optional
// archival format alongside the default CSV aux output (SPEC_FULL.md
// DOMAIN STACK).
type AuxParquetWriter struct {
	file   io.Closer
	writer *parquet.GenericWriter[AuxRow]
}

// NewAuxParquetWriter opens a parquet writer over w.
func NewAuxParquetWriter(w io.WriteCloser) *AuxParquetWriter {
	return &AuxParquetWriter{
		file:   w,
		writer: parquet.NewGenericWriter[AuxRow](w),
	}
}

// WriteAux appends one row, interpreting the 8-byte value as a
// big-endian signed 64-bit scalar (matching the big-endian convention
// used throughout this system's wire formats).
func (a *AuxParquetWriter) WriteAux(f wire.AuxFrame) error {
	row := AuxRow{
		Ts:    float64(f.Ts),
		Value: int64(binary.BigEndian.Uint64(f.Value[:])),
	}
	_, err := a.writer.Write([]AuxRow{row})
	if err != nil {
		return fmt.Errorf("ingestor: parquet write: %w", err)
	}
	return nil
}

// Close flushes and closes the parquet writer and its backing file.
func (a *AuxParquetWriter) Close() error {
	if err := a.writer.Close(); err != nil {
		a.file.Close()
		return fmt.Errorf("ingestor: parquet close: %w", err)
	}
	return a.file.Close()
}
