// Package writer drains a ring buffer into a recording file on a
// background worker, one buffer_size-frame cycle at a time, so the
// real-time process callback never touches the filesystem.
package writer

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/drgolem/audiobridge/internal/pcm"
	"github.com/drgolem/audiobridge/internal/soundfile"
	"github.com/drgolem/audiobridge/internal/worker"
	"github.com/drgolem/audiobridge/pkg/ringbuffer"
	"github.com/drgolem/audiobridge/pkg/types"
)

// ErrShortWrite means the output file accepted fewer frames than the
// frame accounting said it should.
var ErrShortWrite = errors.New("short write to recording file")

// Writer drains a ring buffer that the reactor fills in its process
// callback and writes it out to a recording file.
type Writer struct {
	sf *soundfile.SoundFile

	sampleRate int
	channels   int
	frameSize  int
	bufferSize int // frames

	ring *ringbuffer.RingBuffer

	needed uint64 // 0 means unbounded: stop only on external signal
	done   atomic.Uint64

	scratchFloats []types.Sample
	scratchBytes  []byte

	worker *worker.Worker
}

// New creates path as a 32-bit PCM WAV file and starts a background
// worker draining into it. durationSecs of 0 means the recording is
// unbounded and only stops when Stop is called.
func New(path string, sampleRate, channels, bufferSize int, durationSecs float64) (*Writer, error) {
	sf, err := soundfile.OpenWrite(path, channels, sampleRate)
	if err != nil {
		return nil, err
	}

	var needed uint64
	if durationSecs != 0 {
		needed = uint64(math.Round(durationSecs * float64(sampleRate)))
	}

	frameSize := types.FrameSize(channels)
	w := &Writer{
		sf:            sf,
		sampleRate:    sampleRate,
		channels:      channels,
		frameSize:     frameSize,
		bufferSize:    bufferSize,
		ring:          ringbuffer.New(uint64(bufferSize * frameSize)),
		needed:        needed,
		scratchFloats: make([]types.Sample, bufferSize*channels),
		scratchBytes:  make([]byte, bufferSize*frameSize),
	}
	w.worker = worker.New(w.workCycle)
	w.worker.Start()

	return w, nil
}

// workCycle reads as many frames as are available in the ring buffer,
// the configured buffer size, and (if bounded) the remaining needed
// frames - whichever is smallest - writes them out, and reports whether
// the whole transfer is now done.
func (w *Writer) workCycle() (bool, error) {
	readableBytes := w.ring.AvailableRead()
	readableFrames := readableBytes / uint64(w.frameSize)
	if readableFrames > uint64(w.bufferSize) {
		readableFrames = uint64(w.bufferSize)
	}
	if w.needed != 0 {
		done := w.done.Load()
		remain := w.needed - done
		if readableFrames > remain {
			readableFrames = remain
		}
	}
	if readableFrames == 0 {
		return w.needed != 0 && w.done.Load() >= w.needed, nil
	}

	byteCount := readableFrames * uint64(w.frameSize)
	n := w.ring.Read(w.scratchBytes[:byteCount])
	framesRead := uint64(n) / uint64(w.frameSize)

	pcm.DecodeFloat32Slice(w.scratchFloats[:framesRead*uint64(w.channels)], w.scratchBytes[:n])

	written, err := w.sf.WriteFloat(w.scratchFloats[:framesRead*uint64(w.channels)], int(framesRead))
	if err != nil {
		return false, err
	}
	if uint64(written) != framesRead {
		return false, fmt.Errorf("%w: wrote %d frames, read %d from ring", ErrShortWrite, written, framesRead)
	}

	newDone := w.done.Load() + uint64(written)
	w.done.Store(newDone)
	return w.needed != 0 && newDone >= w.needed, nil
}

// Ring returns the ring buffer the reactor fills in its process
// callback.
func (w *Writer) Ring() *ringbuffer.RingBuffer { return w.ring }

// Channels returns the input channel count this writer was opened for.
func (w *Writer) Channels() int { return w.channels }

// Needed returns the total number of frames this writer will transfer,
// or 0 if the recording is unbounded.
func (w *Writer) Needed() uint64 { return w.needed }

// Done returns the number of frames written out so far.
func (w *Writer) Done() uint64 { return w.done.Load() }

// Finished reports whether the writer has stopped accepting frames,
// either because it reached its needed count or because Stop was called.
func (w *Writer) Finished() bool { return w.worker.Finished() }

// Wake notifies the background worker that ring data may be available.
// Called by the reactor after filling the ring in its process callback.
func (w *Writer) Wake() { w.worker.Wake() }

// Stop requests the worker to stop, waits for it to exit, closes the
// recording file (patching its header), and returns any error captured
// from a work cycle.
func (w *Writer) Stop() error {
	err := w.worker.Stop()
	if cerr := w.sf.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
