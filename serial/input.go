package serial

import (
	"bytes"
	"io"
	"sync"
)

// InputBuffer is the receive stream of a port. The device pump appends to
// it and readers drain it; a read on an empty buffer reports io.EOF, which
// callers treat as end of the currently available input.
type InputBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

// NewInputBuffer creates an empty open buffer
func NewInputBuffer() *InputBuffer {
	return &InputBuffer{}
}

// Feed appends received bytes. Data fed after Close is discarded.
func (b *InputBuffer) Feed(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.buf.Write(data)
}

// Read implements io.Reader
func (b *InputBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, ErrPortClosed
	}
	if b.buf.Len() == 0 {
		return 0, io.EOF
	}
	return b.buf.Read(p)
}

// ReadByte implements io.ByteReader
func (b *InputBuffer) ReadByte() (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, ErrPortClosed
	}
	if b.buf.Len() == 0 {
		return 0, io.EOF
	}
	return b.buf.ReadByte()
}

// Buffered returns the number of unread bytes
func (b *InputBuffer) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// Close drops buffered data and fails subsequent reads
func (b *InputBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.buf.Reset()
	return nil
}
