// Package shmring is a POSIX shared-memory ring buffer for local,
// same-host consumers, adapted from the teacher's pkg/shm_ring (which
// mmap'd /dev/shm for its XDMA capture tee). Here it backs the camera
// governor's optional preview tee (SPEC_FULL.md DOMAIN STACK:
// golang.org/x/sys wired into "the camera shared-memory tee path"):
// a local viewer can mmap the same segment and read frames without
// touching the network path to the ingestor.
package shmring

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// header sits at the start of the shared segment.
type header struct {
	Magic    uint64
	Size     uint64
	Head     uint64
	Tail     uint64
	Version  uint32
	Channels uint32
}

const (
	headerSize = uint64(unsafe.Sizeof(header{}))
	magicValue = 0x5143415054555245 // "QCAPTURE", kept from the teacher's constant
)

// Ring is a single-writer shared-memory circular buffer: the camera
// governor writes, any number of local readers may mmap the same
// /dev/shm segment and follow Head/Tail themselves.
type Ring struct {
	fd   int
	data []byte
	hdr  *header
	size uint64
}

// Create allocates a new named ring of the given payload size (bytes,
// excluding the header), or opens it if it already exists.
func Create(name string, size uint64) (*Ring, error) {
	path := "/dev/shm/" + name
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0o666)
	if err != nil {
		if err == unix.EEXIST {
			return Open(name)
		}
		return nil, fmt.Errorf("shmring: open %s: %w", path, err)
	}

	total := headerSize + size
	if err := unix.Ftruncate(fd, int64(total)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shmring: ftruncate %s: %w", path, err)
	}

	data, err := unix.Mmap(fd, 0, int(total), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shmring: mmap %s: %w", path, err)
	}

	r := &Ring{fd: fd, data: data, size: size}
	r.hdr = (*header)(unsafe.Pointer(&data[0]))
	r.hdr.Magic = magicValue
	r.hdr.Size = size
	r.hdr.Version = 1
	atomic.StoreUint64(&r.hdr.Head, 0)
	atomic.StoreUint64(&r.hdr.Tail, 0)
	return r, nil
}

// Open attaches to an existing named ring.
func Open(name string) (*Ring, error) {
	path := "/dev/shm/" + name
	fd, err := unix.Open(path, unix.O_RDWR, 0o666)
	if err != nil {
		return nil, fmt.Errorf("shmring: open %s: %w", path, err)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shmring: fstat %s: %w", path, err)
	}

	data, err := unix.Mmap(fd, 0, int(stat.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shmring: mmap %s: %w", path, err)
	}

	r := &Ring{fd: fd, data: data, size: uint64(stat.Size) - headerSize}
	r.hdr = (*header)(unsafe.Pointer(&data[0]))
	if r.hdr.Magic != magicValue {
		r.Close()
		return nil, fmt.Errorf("shmring: %s has wrong magic, not a camera tee segment", path)
	}
	return r, nil
}

// Write copies p into the ring at the current head, wrapping as needed.
// Readers are expected to keep pace; Write never blocks on a reader.
func (r *Ring) Write(p []byte) (int, error) {
	n := len(p)
	if uint64(n) > r.size {
		return 0, fmt.Errorf("shmring: write of %d bytes exceeds ring size %d", n, r.size)
	}

	head := atomic.LoadUint64(&r.hdr.Head)
	dest := r.data[headerSize:]

	firstPart := r.size - head
	if uint64(n) <= firstPart {
		copy(dest[head:], p)
	} else {
		copy(dest[head:], p[:firstPart])
		copy(dest[0:], p[firstPart:])
	}

	atomic.StoreUint64(&r.hdr.Head, (head+uint64(n))%r.size)
	return n, nil
}

// Close unmaps the segment and closes its file descriptor, without
// removing the backing /dev/shm file (readers may still be attached).
func (r *Ring) Close() error {
	if r.data != nil {
		unix.Munmap(r.data)
		r.data = nil
	}
	if r.fd != 0 {
		unix.Close(r.fd)
		r.fd = 0
	}
	return nil
}

// Remove unlinks the named segment from /dev/shm.
func Remove(name string) error {
	err := unix.Unlink("/dev/shm/" + name)
	if err != nil && err != unix.ENOENT {
		return err
	}
	return nil
}
