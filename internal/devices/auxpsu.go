package devices

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PSUAuxChannel is a real-hardware AuxSource backed by a Keysight
// E3631A bench supply's measured output voltage, adapted from the
// teacher's KeysightE3631A SCPI-over-raw-socket controller
// (psu_keysight.go): same Connect/queryLocked/reconnect shape, repointed
// from a PSU control panel onto spec.md §4.3's auxiliary scalar channel
// contract (Read() [8]byte) instead of a JSON status endpoint.
type PSUAuxChannel struct {
	addr string
	mu   sync.Mutex

	conn   net.Conn
	reader *bufio.Reader

	channel string
	timeout time.Duration
}

const psuDefaultChannel = "P25V" // Channel 2: +25V output, same as the teacher's default

// NewPSUAuxChannel builds a channel reading measured voltage from a
// Keysight E3631A at addr (host:port of its SCPI raw socket, typically
// port 5025).
func NewPSUAuxChannel(addr string) *PSUAuxChannel {
	return &PSUAuxChannel{addr: addr, channel: psuDefaultChannel, timeout: 2 * time.Second}
}

// Connect opens the SCPI socket and selects the configured channel.
func (p *PSUAuxChannel) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := net.DialTimeout("tcp", p.addr, p.timeout)
	if err != nil {
		return fmt.Errorf("devices: connect to PSU at %s: %w", p.addr, err)
	}
	p.conn = conn
	p.reader = bufio.NewReader(conn)

	if _, err := p.queryLocked("*IDN?"); err != nil {
		p.conn.Close()
		p.conn = nil
		return fmt.Errorf("devices: identify PSU: %w", err)
	}
	if err := p.writeLocked("INST:SEL " + p.channel); err != nil {
		return fmt.Errorf("devices: select PSU channel %s: %w", p.channel, err)
	}
	return nil
}

func (p *PSUAuxChannel) writeLocked(cmd string) error {
	if p.conn == nil {
		return fmt.Errorf("devices: PSU not connected")
	}
	p.conn.SetWriteDeadline(time.Now().Add(p.timeout))
	_, err := p.conn.Write([]byte(cmd + "\n"))
	return err
}

func (p *PSUAuxChannel) queryLocked(cmd string) (string, error) {
	if p.conn == nil {
		return "", fmt.Errorf("devices: PSU not connected")
	}
	p.conn.SetWriteDeadline(time.Now().Add(p.timeout))
	if _, err := p.conn.Write([]byte(cmd + "\n")); err != nil {
		return "", err
	}
	p.conn.SetReadDeadline(time.Now().Add(p.timeout))
	line, err := p.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Read queries MEAS:VOLT? and packs the result as an 8-byte big-endian
// IEEE-754 double, the same wire shape every other AuxChannel produces.
// A query failure reconnects once before giving up for this sample,
// mirroring the teacher's Poll->handleDisconnect retry path.
func (p *PSUAuxChannel) Read() [8]byte {
	var v [8]byte
	volts, err := p.measure()
	if err != nil {
		if err := p.Connect(); err == nil {
			volts, _ = p.measure()
		}
	}
	binary.BigEndian.PutUint64(v[:], math.Float64bits(volts))
	return v
}

func (p *PSUAuxChannel) measure() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	raw, err := p.queryLocked("MEAS:VOLT?")
	if err != nil {
		if p.conn != nil {
			p.conn.Close()
			p.conn = nil
		}
		return 0, fmt.Errorf("devices: measure PSU voltage: %w", err)
	}
	return strconv.ParseFloat(raw, 64)
}

// Close releases the SCPI connection.
func (p *PSUAuxChannel) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
