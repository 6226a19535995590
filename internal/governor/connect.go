package governor

import (
	"context"
	"fmt"
	"net"

	"github.com/fieldsync/fieldsync/internal/clock"
	"github.com/fieldsync/fieldsync/internal/transport"
	"github.com/fieldsync/fieldsync/internal/wire"
)

// connectAndHandshake dials the ingestor gateway through recon, sends
// the client hello for (kind, ident), and reads back the assigned data
// port. Per spec.md §4.5 steps 3-4 (scenario #1: "client reconnects to
// 127.0.0.1:42000"), the gateway connection is a one-shot control
// exchange, not the data stream: the ingestor closes it immediately
// after replying and opens a fresh listener on the assigned port
// instead, so this dials that port and returns *that* connection for
// the caller's consumer to stream records into.
func connectAndHandshake(recon *transport.Reconnector, kind wire.DeviceKind, ident uint32) (net.Conn, error) {
	ctrl, err := recon.Dial(context.Background())
	if err != nil {
		return nil, fmt.Errorf("governor: dial gateway: %w", err)
	}
	hello := wire.ClientHello{Kind: kind, Ident: ident, Ts: clock.Now()}
	if err := wire.SendAll(ctrl, hello.Pack()); err != nil {
		ctrl.Close()
		return nil, fmt.Errorf("governor: send hello: %w", err)
	}
	replyBuf, err := wire.RecvAll(ctrl, wire.HandshakeReplySize)
	if err != nil {
		ctrl.Close()
		return nil, fmt.Errorf("governor: recv handshake reply: %w", err)
	}
	dataPort, err := wire.UnpackHandshakeReply(replyBuf)
	ctrl.Close()
	if err != nil {
		return nil, fmt.Errorf("governor: bad handshake reply: %w", err)
	}

	host, _, err := net.SplitHostPort(recon.Addr)
	if err != nil {
		return nil, fmt.Errorf("governor: parse gateway addr %s: %w", recon.Addr, err)
	}
	dataRecon := transport.NewReconnector(fmt.Sprintf("%s:%d", host, dataPort))
	conn, err := dataRecon.Dial(context.Background())
	if err != nil {
		return nil, fmt.Errorf("governor: dial data port %d: %w", dataPort, err)
	}
	return conn, nil
}
