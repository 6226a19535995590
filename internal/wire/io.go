package wire

import (
	"fmt"
	"io"
)

// SendAll writes buf in full, retrying on partial writes, matching
// spec.md §4.4's "full-send loop that retries on partial writes."
// Grounded on original_source/src/governors.py's sendall usage and on
// spec.md §9's note that argument-less sendall() calls in the original
// were a mistake and should be dropped: every write here always takes an
// explicit buffer.
func SendAll(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return fmt.Errorf("wire: sendall: %w", err)
		}
		buf = buf[n:]
	}
	return nil
}

// RecvAll reads exactly n bytes or fails, so callers never observe a
// short read (spec.md §9's "first-class length-delimited reads", adapted
// from original_source/src/governors.py's _recv_all).
func RecvAll(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	read := 0
	for read < n {
		m, err := r.Read(buf[read:])
		if m > 0 {
			read += m
		}
		if err != nil {
			if err == io.EOF && read == n {
				break
			}
			return nil, fmt.Errorf("wire: recvall: %w", err)
		}
		if m == 0 && err == nil {
			return nil, fmt.Errorf("wire: recvall: read returned zero with no error")
		}
	}
	return buf, nil
}
