// Package transport implements the best-effort TCP reconnect budget from
// spec.md §4.6, grounded on the teacher's KeysightE3631A.Connect
// (adapted into internal/devices.PSUAuxChannel) net.Dial-and-retry
// pattern, paced with golang.org/x/time/rate (wired per SPEC_FULL.md
// DOMAIN STACK) instead of a bare time.Sleep loop, and setting
// SO_REUSEADDR via golang.org/x/sys/unix the way the teacher's raw DMA
// socket options did.
package transport

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

// DefaultBudget is the default 60s reconnection budget (spec.md §4.6).
const DefaultBudget = 60 * time.Second

// DefaultBackoff is the ~1s backoff between attempts (spec.md §4.6).
const DefaultBackoff = 1 * time.Second

// Reconnector dials a fixed TCP address, retrying on failure within a
// budget and backing off at a steady rate.
type Reconnector struct {
	Addr    string
	Budget  time.Duration
	Backoff time.Duration
}

// NewReconnector builds a Reconnector with the spec.md §4.6 defaults.
func NewReconnector(addr string) *Reconnector {
	return &Reconnector{Addr: addr, Budget: DefaultBudget, Backoff: DefaultBackoff}
}

// Dial attempts to connect immediately; on failure it retries at
// r.Backoff intervals (paced by a rate.Limiter so concurrent governors
// sharing a process don't burst-dial the ingestor) until r.Budget
// elapses, at which point it returns the last dial error. The governor
// consumers that call it do not move to a terminal state on that error:
// they wait r.Backoff and start the handshake again, without limit.
func (r *Reconnector) Dial(ctx context.Context) (net.Conn, error) {
	limiter := rate.NewLimiter(rate.Every(r.Backoff), 1)
	deadline := time.Now().Add(r.Budget)
	dialer := net.Dialer{
		Timeout: 2 * time.Second,
		Control: setReuseAddr,
	}

	var lastErr error
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("transport: reconnect wait: %w", err)
		}

		conn, err := dialer.DialContext(ctx, "tcp", r.Addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("transport: reconnect budget (%s) exhausted dialing %s: %w", r.Budget, r.Addr, lastErr)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
}

// setReuseAddr sets SO_REUSEADDR on the raw socket before connect, so a
// governor that reconnects quickly after a reset doesn't get stuck in
// TIME_WAIT on its own source port (SPEC_FULL.md DOMAIN STACK:
// golang.org/x/sys wired into "SO_REUSEADDR on governor sockets").
func setReuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// IsTransient classifies a socket error per spec.md §7's taxonomy:
// broken-pipe, connection-reset, and generic OS errors are all treated
// as transient and reconnect-worthy; spec.md §4.6 draws no distinction
// between them on the client side.
func IsTransient(err error) bool {
	return err != nil
}
