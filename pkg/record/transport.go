// In-memory non-blocking transport.
//
// MemoryTransport gives embedders and tests a duplex pipe with the same
// contract a non-blocking socket has: reads on an empty inbox and writes
// past the configured budget return ErrWouldBlock instead of blocking.
// Chunk limits let tests exercise partial reads and writes
// deterministically.
package record

import (
	"io"
	"sync"

	qerrors "github.com/gilwalzer/s2n/internal/errors"
)

// MemoryTransport is one endpoint of an in-memory duplex pipe.
type MemoryTransport struct {
	mu sync.Mutex

	inbox  []byte
	peer   *MemoryTransport
	closed bool

	// readChunk caps bytes returned per Read; 0 means unlimited.
	readChunk int

	// writeBudget caps total bytes accepted by Write before ErrWouldBlock;
	// negative means unlimited.
	writeBudget int
}

// MemoryPipe creates a connected pair of in-memory transports with
// unlimited budgets.
func MemoryPipe() (*MemoryTransport, *MemoryTransport) {
	a := &MemoryTransport{writeBudget: -1}
	b := &MemoryTransport{writeBudget: -1}
	a.peer = b
	b.peer = a
	return a, b
}

// SetReadChunk caps the number of bytes a single Read returns. Zero removes
// the cap.
func (t *MemoryTransport) SetReadChunk(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readChunk = n
}

// SetWriteBudget sets the number of bytes Write will accept before
// signaling would-block. Negative means unlimited.
func (t *MemoryTransport) SetWriteBudget(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeBudget = n
}

// AddWriteBudget extends a finite write budget.
func (t *MemoryTransport) AddWriteBudget(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeBudget >= 0 {
		t.writeBudget += n
	}
}

// Read drains buffered bytes from the inbox. An empty inbox returns
// ErrWouldBlock while the peer is open and io.EOF after it closed.
func (t *MemoryTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.inbox) == 0 {
		if t.peer.isClosed() {
			return 0, io.EOF
		}
		return 0, qerrors.ErrWouldBlock
	}

	n := len(p)
	if n > len(t.inbox) {
		n = len(t.inbox)
	}
	if t.readChunk > 0 && n > t.readChunk {
		n = t.readChunk
	}
	copy(p, t.inbox[:n])
	t.inbox = t.inbox[n:]
	return n, nil
}

// Write delivers bytes to the peer's inbox, honoring the write budget.
// A partial write consumes the remaining budget; an exhausted budget
// returns ErrWouldBlock.
func (t *MemoryTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, io.ErrClosedPipe
	}

	n := len(p)
	if t.writeBudget >= 0 {
		if t.writeBudget == 0 {
			t.mu.Unlock()
			return 0, qerrors.ErrWouldBlock
		}
		if n > t.writeBudget {
			n = t.writeBudget
		}
		t.writeBudget -= n
	}
	peer := t.peer
	t.mu.Unlock()

	peer.deliver(p[:n])
	if n < len(p) {
		return n, qerrors.ErrWouldBlock
	}
	return n, nil
}

// Close marks the endpoint closed. The peer reads any buffered bytes and
// then sees io.EOF.
func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *MemoryTransport) deliver(p []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inbox = append(t.inbox, p...)
}

func (t *MemoryTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
