package ring

import "sync"

// DoubleBuffer pairs two Rings: the producer always inserts into front,
// the consumer always drains back, and Swap exchanges the two references
// under a short lock (spec.md §4.2). Grounded on
// original_source/src/buffers.py's DoubleBuffer, generalized from Python
// deques to the generic Ring[T] above.
type DoubleBuffer[T any] struct {
	swapMu sync.Mutex
	front  *Ring[T]
	back   *Ring[T]
}

// NewDoubleBuffer builds a DoubleBuffer whose rings each have the given
// capacity.
func NewDoubleBuffer[T any](capacity int) *DoubleBuffer[T] {
	return &DoubleBuffer[T]{
		front: New[T](capacity),
		back:  New[T](capacity),
	}
}

// Put enqueues item into front. If front is full and dropIfFull is set,
// the item is silently discarded. Otherwise Put swaps the rings and
// retries once on the new front; if that also fails, it returns ErrFull
// to signal that the consumer is stalled (spec.md §4.2, §7 Overload).
func (d *DoubleBuffer[T]) Put(item T, dropIfFull bool) error {
	front := d.loadFront()
	if err := front.Put(item, false, 0); err != nil {
		if err != ErrFull {
			return err
		}
		if dropIfFull {
			return nil
		}
		d.Swap()
		return d.loadFront().Put(item, false, 0)
	}
	return nil
}

// Ready reports whether back currently holds at least one element.
func (d *DoubleBuffer[T]) Ready() bool {
	return !d.loadBack().Empty()
}

// Drain returns every item currently enqueued in back, observed at the
// moment Drain is called -- a snapshot prefix per spec.md §3's
// DoubleBuffer invariant, not a live view that could grow while the
// caller iterates.
func (d *DoubleBuffer[T]) Drain() []T {
	back := d.loadBack()
	n := back.Len()
	items := make([]T, 0, n)
	for i := 0; i < n; i++ {
		item, err := back.Get(false, 0)
		if err != nil {
			break
		}
		items = append(items, item)
	}
	return items
}

// Pop removes and returns a single element from back, or ok=false if
// back is currently empty.
func (d *DoubleBuffer[T]) Pop() (item T, ok bool) {
	v, err := d.loadBack().Get(false, 0)
	if err != nil {
		return item, false
	}
	return v, true
}

// Swap atomically exchanges front and back. Producers must never hold
// this lock across I/O (spec.md §4.4 invariants); the critical section
// here is a pointer swap only.
func (d *DoubleBuffer[T]) Swap() {
	d.swapMu.Lock()
	d.front, d.back = d.back, d.front
	d.swapMu.Unlock()
}

func (d *DoubleBuffer[T]) loadFront() *Ring[T] {
	d.swapMu.Lock()
	defer d.swapMu.Unlock()
	return d.front
}

func (d *DoubleBuffer[T]) loadBack() *Ring[T] {
	d.swapMu.Lock()
	defer d.swapMu.Unlock()
	return d.back
}

// Len reports the combined element count across both rings, primarily
// useful for diagnostics and drain-on-termination bookkeeping.
func (d *DoubleBuffer[T]) Len() int {
	return d.loadFront().Len() + d.loadBack().Len()
}

// Empty reports whether both rings are currently empty -- the condition
// a governor's consumer must observe before emitting END_STOP
// (spec.md §4.4 invariants).
func (d *DoubleBuffer[T]) Empty() bool {
	return d.loadFront().Empty() && d.loadBack().Empty()
}
