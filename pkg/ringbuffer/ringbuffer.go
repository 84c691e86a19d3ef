// Package ringbuffer implements a lock-free single-producer
// single-consumer byte ring buffer for real-time audio streaming.
package ringbuffer

import (
	"sync/atomic"
)

// RingBuffer is a lock-free single-producer single-consumer ring buffer
// optimized for audio applications with byte data.
//
// Unlike a general-purpose io.Writer, Write never blocks and never fails:
// it moves min(len(data), AvailableWrite()) bytes and reports how many it
// actually moved. Callers that need "all or nothing" semantics check the
// returned count themselves. The same holds for Read with AvailableRead().
// This mirrors how a real-time producer/consumer pair must behave: the
// audio callback can never be made to wait.
//
//   - Write() must only be called by the producer thread.
//   - Read() must only be called by the consumer thread.
type RingBuffer struct {
	buffer   []byte
	size     uint64 // must be power of 2
	mask     uint64 // size - 1, for efficient modulo
	writePos atomic.Uint64
	readPos  atomic.Uint64
}

// New creates a new ring buffer with the given size.
// Size will be rounded up to the next power of 2 for efficiency.
func New(size uint64) *RingBuffer {
	size = nextPowerOf2(size)

	return &RingBuffer{
		buffer: make([]byte, size),
		size:   size,
		mask:   size - 1,
	}
}

// Write copies min(len(data), AvailableWrite()) bytes from data into the
// ring buffer and returns how many bytes were copied. It never errors and
// never blocks; a caller that needs to know a write was short compares
// the returned count against len(data).
//
// This method must only be called by the producer thread.
func (rb *RingBuffer) Write(data []byte) int {
	toWrite := uint64(len(data))
	if toWrite == 0 {
		return 0
	}

	available := rb.AvailableWrite()
	if toWrite > available {
		toWrite = available
	}
	if toWrite == 0 {
		return 0
	}

	writePos := rb.writePos.Load()
	start := writePos & rb.mask
	end := (writePos + toWrite) & rb.mask

	if end > start {
		copy(rb.buffer[start:end], data[:toWrite])
	} else {
		firstChunk := rb.size - start
		copy(rb.buffer[start:], data[:firstChunk])
		copy(rb.buffer[:end], data[firstChunk:toWrite])
	}

	rb.writePos.Store(writePos + toWrite)

	return int(toWrite)
}

// Read copies up to len(data) bytes from the ring buffer into data and
// returns the number of bytes copied. It reads whatever is available, up
// to len(data), and never errors or blocks - an empty buffer simply
// yields 0.
//
// This method must only be called by the consumer thread.
func (rb *RingBuffer) Read(data []byte) int {
	toRead := uint64(len(data))
	if toRead == 0 {
		return 0
	}

	available := rb.AvailableRead()
	if toRead > available {
		toRead = available
	}
	if toRead == 0 {
		return 0
	}

	readPos := rb.readPos.Load()
	start := readPos & rb.mask
	end := (readPos + toRead) & rb.mask

	if end > start {
		copy(data[:toRead], rb.buffer[start:end])
	} else {
		firstChunk := rb.size - start
		copy(data[:firstChunk], rb.buffer[start:])
		copy(data[firstChunk:toRead], rb.buffer[:end])
	}

	rb.readPos.Store(readPos + toRead)

	return int(toRead)
}

// AvailableWrite returns the number of bytes available for writing.
func (rb *RingBuffer) AvailableWrite() uint64 {
	writePos := rb.writePos.Load()
	readPos := rb.readPos.Load()
	return rb.size - (writePos - readPos)
}

// AvailableRead returns the number of bytes available for reading.
func (rb *RingBuffer) AvailableRead() uint64 {
	writePos := rb.writePos.Load()
	readPos := rb.readPos.Load()
	return writePos - readPos
}

// Size returns the total capacity of the ring buffer in bytes.
func (rb *RingBuffer) Size() uint64 {
	return rb.size
}

// ReadSlices returns one or two slices that provide zero-copy access to
// the available data. The data may be split into two slices if it wraps
// around the ring buffer. After processing the data, call Consume() to
// advance the read position. Consumer thread only.
func (rb *RingBuffer) ReadSlices() (first, second []byte, total uint64) {
	available := rb.AvailableRead()
	if available == 0 {
		return nil, nil, 0
	}

	readPos := rb.readPos.Load()
	start := readPos & rb.mask
	end := (readPos + available) & rb.mask

	if end > start {
		return rb.buffer[start:end], nil, available
	}

	return rb.buffer[start:], rb.buffer[:end], available
}

// Consume advances the read position by n bytes without copying data,
// clamping n to the bytes actually available. Used alongside ReadSlices()
// for zero-copy reads. Consumer thread only.
func (rb *RingBuffer) Consume(n uint64) {
	if n == 0 {
		return
	}
	available := rb.AvailableRead()
	if n > available {
		n = available
	}
	readPos := rb.readPos.Load()
	rb.readPos.Store(readPos + n)
}

// Reset clears the ring buffer by resetting read and write positions.
// Must only be called when no producer or consumer is active.
func (rb *RingBuffer) Reset() {
	rb.readPos.Store(0)
	rb.writePos.Store(0)
}

// nextPowerOf2 rounds up to the next power of 2.
func nextPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}
