package ingestor

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/fieldsync/fieldsync/internal/logging"
	"github.com/fieldsync/fieldsync/internal/wire"
)

// PortAllocator hands out data ports from a monotonically increasing
// pool within [start, end), wrapping back to start when exhausted
// (spec.md §4.5 step 1).
type PortAllocator struct {
	start, end uint32
	next       atomic.Uint32
}

// NewPortAllocator builds an allocator over [start, end).
func NewPortAllocator(start, end uint16) *PortAllocator {
	a := &PortAllocator{start: uint32(start), end: uint32(end)}
	a.next.Store(a.start)
	return a
}

// Next returns the next port in the pool.
func (a *PortAllocator) Next() uint16 {
	for {
		cur := a.next.Load()
		nextVal := cur + 1
		if nextVal >= a.end {
			nextVal = a.start
		}
		if a.next.CompareAndSwap(cur, nextVal) {
			return uint16(cur)
		}
	}
}

// ConsumerSpawner starts the appropriate per-device consumer for an
// admitted session. Supplied by the caller (cmd/ingestor) so Gateway
// stays decoupled from the concrete consumer implementations in
// consumer.go.
type ConsumerSpawner func(session *DeviceSession)

// Gateway is the single well-known listener accepting client hellos
// (spec.md §4.5). Each accepted connection is handled in its own
// goroutine (hello -> port allocation -> handshake reply -> data-port
// listener opened -> control connection closed); a per-device consumer
// is spawned once a client connects to the data port.
type Gateway struct {
	ln      net.Listener
	ports   *PortAllocator
	pool    *SessionPool
	spawn   ConsumerSpawner
	log     *logging.Logger
}

// NewGateway opens the gateway listener on addr.
func NewGateway(addr string, ports *PortAllocator, pool *SessionPool, spawn ConsumerSpawner, log *logging.Logger) (*Gateway, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ingestor: listen gateway %s: %w", addr, err)
	}
	return &Gateway{ln: ln, ports: ports, pool: pool, spawn: spawn, log: log}, nil
}

// Close stops accepting new hellos.
func (g *Gateway) Close() error { return g.ln.Close() }

// Serve accepts hellos until the listener is closed (spec.md §4.5).
// Each accepted connection is handled independently; a malformed hello
// terminates only that connection (spec.md §7 Protocol).
func (g *Gateway) Serve() error {
	for {
		conn, err := g.ln.Accept()
		if err != nil {
			return fmt.Errorf("ingestor: gateway accept: %w", err)
		}
		go g.handleHello(conn)
	}
}

func (g *Gateway) handleHello(ctrl net.Conn) {
	defer ctrl.Close()

	buf, err := wire.RecvAll(ctrl, wire.HelloSize)
	if err != nil {
		g.log.Error("gateway: hello read failed", "err", err)
		return
	}
	hello, err := wire.UnpackClientHello(buf)
	if err != nil {
		g.log.Error("gateway: malformed hello", "err", err)
		return
	}

	dataPort := g.ports.Next()
	if err := wire.SendAll(ctrl, wire.PackHandshakeReply(dataPort)); err != nil {
		g.log.Error("gateway: handshake reply failed", "err", err)
		return
	}

	dataAddr := fmt.Sprintf(":%d", dataPort)
	dataLn, err := net.Listen("tcp", dataAddr)
	if err != nil {
		g.log.Error("gateway: data port bind failed", "port", dataPort, "err", err)
		return
	}

	session := NewDeviceSession(hello.Kind, hello.Ident, hello.Ts, time.Now())
	g.pool.Push(session)
	g.log.Info("gateway: admitted session", "kind", hello.Kind, "ident", hello.Ident, "port", dataPort, "session", session.ID)

	go g.acceptDataConn(dataLn, session)
}

func (g *Gateway) acceptDataConn(ln net.Listener, session *DeviceSession) {
	defer ln.Close()
	conn, err := ln.Accept()
	if err != nil {
		g.log.Error("gateway: data connection accept failed", "session", session.ID, "err", err)
		return
	}
	session.DataConn = conn
	g.spawn(session)
}
