package ingestor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldsync/fieldsync/internal/clock"
	"github.com/fieldsync/fieldsync/internal/wire"
)

func TestSessionPool_FreshnessOrder(t *testing.T) {
	pool := NewSessionPool()
	now := time.Now()

	stale := NewDeviceSession(wire.KindSensor, 0, clock.FromTime(now.Add(-5*time.Second)), now)
	fresh := NewDeviceSession(wire.KindSensor, 1, clock.FromTime(now), now)

	pool.Push(stale)
	pool.Push(fresh)

	require.Equal(t, 2, pool.Len())
	first := pool.Pop()
	require.Equal(t, fresh.ID, first.ID, "freshest session (smallest priority) pops first")
	second := pool.Pop()
	require.Equal(t, stale.ID, second.ID)
	require.Nil(t, pool.Pop())
}

func TestPortAllocator_WrapsAround(t *testing.T) {
	a := NewPortAllocator(42000, 42002)
	p1 := a.Next()
	p2 := a.Next()
	p3 := a.Next()
	require.Equal(t, uint16(42000), p1)
	require.Equal(t, uint16(42001), p2)
	require.Equal(t, uint16(42000), p3, "pool wraps back to start once exhausted")
}

func TestFileWriter_SensorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWriter(dir, wire.KindSensor, 1)
	require.NoError(t, err)

	require.NoError(t, fw.WriteSensor(wire.SensorRecord{Ts: 1700000000000.0, X: 1.5, Y: -2.25, H: 0.0, Idx: 1}))
	require.NoError(t, fw.Close())

	data, err := os.ReadFile(filepath.Join(dir, "sensor", "sensor2.csv"))
	require.NoError(t, err)
	require.Equal(t, "1700000000000.0,1.5,-2.25,0.0\n", string(data))
}

func TestFileWriter_AuxRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWriter(dir, wire.KindAux, 0)
	require.NoError(t, err)

	require.NoError(t, fw.WriteAux(wire.AuxFrame{Ts: 42.0, Value: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}))
	require.NoError(t, fw.Close())

	data, err := os.ReadFile(filepath.Join(dir, "aux", "aux0.csv"))
	require.NoError(t, err)
	require.Equal(t, "42,0102030405060708\n", string(data))
}

func TestFileWriter_CameraWritesFrameFile(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWriter(dir, wire.KindCamera, 2)
	require.NoError(t, err)

	payload := []byte{9, 9, 9, 9}
	require.NoError(t, fw.WriteCamera(wire.CameraRecord{Ts: 10.0, Payload: payload}))
	require.NoError(t, fw.Close())

	entries, err := os.ReadDir(filepath.Join(dir, "camera", "camera2"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
