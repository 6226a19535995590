// Package ingestor implements the receiver node of spec.md §4.5: a
// gateway listener accepting client hellos, a freshness-ordered session
// queue, and one consumer goroutine per admitted device stream. Grounded
// on the teacher's server.go (listener/accept loop shape) and on
// original_source/src/main.py's ingestor admission loop.
package ingestor

import (
	"container/heap"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldsync/fieldsync/internal/clock"
	"github.com/fieldsync/fieldsync/internal/wire"
)

// DeviceSession describes one admitted client device stream (spec.md
// §3). ID is a stable identifier independent of the freshness-ordered
// Priority used for queue admission order.
type DeviceSession struct {
	ID        uuid.UUID
	Kind      wire.DeviceKind
	Ident     uint32
	CreatedTs clock.Timestamp
	DataConn  net.Conn

	// Priority is the integer delta (ms) between admission time and
	// CreatedTs; smaller is fresher and sorts first (spec.md §3).
	Priority int64

	index int // heap bookkeeping, managed by sessionQueue only
}

// NewDeviceSession builds a session admitted at admittedAt for a hello
// received at helloTs.
func NewDeviceSession(kind wire.DeviceKind, ident uint32, helloTs clock.Timestamp, admittedAt time.Time) *DeviceSession {
	nowMs := clock.FromTime(admittedAt)
	return &DeviceSession{
		ID:        uuid.New(),
		Kind:      kind,
		Ident:     ident,
		CreatedTs: helloTs,
		Priority:  int64(nowMs) - int64(helloTs),
	}
}

// sessionQueue is a container/heap priority queue ordered by freshness
// (smaller Priority first), per spec.md §3's DeviceSession ownership
// note: "the connection pool owns no long-lived resources beyond its
// queue entries."
type sessionQueue []*DeviceSession

func (q sessionQueue) Len() int            { return len(q) }
func (q sessionQueue) Less(i, j int) bool  { return q[i].Priority < q[j].Priority }
func (q sessionQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *sessionQueue) Push(x interface{}) {
	s := x.(*DeviceSession)
	s.index = len(*q)
	*q = append(*q, s)
}
func (q *sessionQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

// SessionPool is the ingestor's thread-safe admission queue. Gateway
// goroutines push admitted sessions and Pop returns them in freshness
// order; the gateway spawns each session's consumer directly and does
// not pop the pool.
type SessionPool struct {
	mu sync.Mutex
	q  sessionQueue
}

// NewSessionPool builds an empty pool.
func NewSessionPool() *SessionPool {
	p := &SessionPool{}
	heap.Init(&p.q)
	return p
}

// Push admits a session into the pool.
func (p *SessionPool) Push(s *DeviceSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	heap.Push(&p.q, s)
}

// Pop removes and returns the freshest session, or nil if the pool is
// empty.
func (p *SessionPool) Pop() *DeviceSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.q.Len() == 0 {
		return nil
	}
	return heap.Pop(&p.q).(*DeviceSession)
}

// Len reports the current pool size.
func (p *SessionPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.q.Len()
}
