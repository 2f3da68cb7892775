// Package buffer implements the dual-cursor byte buffer used throughout the
// handshake driver.
//
// A Buffer is a growable byte region with independent read and write cursors.
// The writer appends at the end; the reader drains from the front. The same
// buffer serves both directions of handshake processing: a message is
// assembled in it before fragmentation on the write path, and reassembled in
// it from record fragments on the read path.
//
// Slices returned by Bytes, Next and At borrow the underlying storage. They
// are valid only until the next Wipe; nothing may retain one past that.
package buffer

import "io"

// Buffer is a growable byte buffer with independent read and write cursors.
// The zero value is ready to use.
type Buffer struct {
	data    []byte
	readPos int
}

// New creates an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// NewWithCapacity creates an empty Buffer with preallocated storage.
func NewWithCapacity(n int) *Buffer {
	return &Buffer{data: make([]byte, 0, n)}
}

// Write appends p to the buffer. It implements io.Writer and never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(c byte) error {
	b.data = append(b.data, c)
	return nil
}

// Size returns the total number of bytes written, regardless of how many
// have been read.
func (b *Buffer) Size() int {
	return len(b.data)
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	return len(b.data) - b.readPos
}

// Bytes returns the unread window. The slice borrows the buffer's storage.
func (b *Buffer) Bytes() []byte {
	return b.data[b.readPos:]
}

// All returns every byte written, including already-read ones.
// The slice borrows the buffer's storage.
func (b *Buffer) All() []byte {
	return b.data
}

// Next drains up to n bytes, advancing the read cursor, and returns them.
// Fewer than n bytes are returned when fewer are unread.
func (b *Buffer) Next(n int) []byte {
	if n > b.Len() {
		n = b.Len()
	}
	p := b.data[b.readPos : b.readPos+n]
	b.readPos += n
	return p
}

// ReadByte drains a single byte. It returns io.EOF when nothing is unread.
func (b *Buffer) ReadByte() (byte, error) {
	if b.Len() == 0 {
		return 0, io.EOF
	}
	c := b.data[b.readPos]
	b.readPos++
	return c, nil
}

// Skip advances the read cursor by up to n bytes and reports how many were
// skipped.
func (b *Buffer) Skip(n int) int {
	if n > b.Len() {
		n = b.Len()
	}
	b.readPos += n
	return n
}

// Rewind moves the read cursor back to the start without touching the data.
func (b *Buffer) Rewind() {
	b.readPos = 0
}

// Reserve appends n zero bytes and returns their offset, for headers whose
// contents are only known after the body has been written. Fill the region
// later through At.
func (b *Buffer) Reserve(n int) int {
	off := len(b.data)
	for i := 0; i < n; i++ {
		b.data = append(b.data, 0)
	}
	return off
}

// At returns the n written bytes starting at offset off.
// The slice borrows the buffer's storage.
func (b *Buffer) At(off, n int) []byte {
	return b.data[off : off+n]
}

// Wipe zeroes the buffer's contents and resets both cursors. Storage is
// retained for reuse. Any previously borrowed slice is dead after Wipe.
func (b *Buffer) Wipe() {
	for i := range b.data {
		b.data[i] = 0
	}
	b.data = b.data[:0]
	b.readPos = 0
}
