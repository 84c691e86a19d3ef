// Package reader streams a playback file into a ring buffer on a
// background worker, one buffer_size-frame cycle at a time, so the
// real-time process callback never touches the filesystem.
package reader

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

var (
	// ErrSampleRateMismatch means the playback file's sample rate does
	// not match the engine's sample rate.
	ErrSampleRateMismatch = errors.New("playback file sample rate mismatch")
	// ErrChannelMismatch means the playback file's channel count does
	// not match the number of output ports.
	ErrChannelMismatch = errors.New("playback file channel count mismatch")
	// ErrPrematureEOF means the file produced fewer frames than the
	// frame accounting said should still be available.
	ErrPrematureEOF = errors.New("premature end of playback file")
)

// Reader reads a playback file and feeds it into a ring buffer that the
// reactor drains in its process callback.
type Reader struct {
	sf *soundfile.SoundFile

	sampleRate int
	channels   int
	frameSize  int
	bufferSize int // frames

	ring *ringbuffer.RingBuffer

	needed uint64
	done   atomic.Uint64

	scratchFloats []types.Sample
	scratchBytes  []byte

	worker *worker.Worker
}

// New opens path, validates its format against sampleRate/channels,
// seeks to startOffsetSecs, computes how many frames are needed given
// durationSecs (0 meaning "play to end of file"), prefills the ring
// buffer with one synchronous work cycle, and only then starts the
// background worker - unless the prefill already satisfied the whole
// transfer.
func New(path string, sampleRate, channels, bufferSize int, durationSecs, startOffsetSecs float64) (*Reader, error) {
	sf, info, err := soundfile.OpenRead(path)
	if err != nil {
		return nil, err
	}
	if info.SampleRate != sampleRate {
		sf.Close()
		return nil, fmt.Errorf("%w: playback file is %d Hz, engine is %d Hz", ErrSampleRateMismatch, info.SampleRate, sampleRate)
	}
	if info.Channels != channels {
		sf.Close()
		return nil, fmt.Errorf("%w: playback file has %d channels, engine has %d output ports", ErrChannelMismatch, info.Channels, channels)
	}

	framesAvail := info.Frames
	startFrame := int64(math.Round(startOffsetSecs * float64(sampleRate)))
	if startFrame > framesAvail {
		startFrame = framesAvail
	}
	if startFrame < 0 {
		startFrame = 0
	}
	if err := sf.Seek(startFrame); err != nil {
		sf.Close()
		return nil, fmt.Errorf("failed seeking playback file to frame %d: %w", startFrame, err)
	}
	framesAvail -= startFrame

	if durationSecs != 0 {
		durationFrames := int64(math.Round(durationSecs * float64(sampleRate)))
		if durationFrames < framesAvail {
			framesAvail = durationFrames
		}
	}

	frameSize := types.FrameSize(channels)
	r := &Reader{
		sf:            sf,
		sampleRate:    sampleRate,
		channels:      channels,
		frameSize:     frameSize,
		bufferSize:    bufferSize,
		ring:          ringbuffer.New(uint64(bufferSize * frameSize)),
		needed:        uint64(framesAvail),
		scratchFloats: make([]types.Sample, bufferSize*channels),
		scratchBytes:  make([]byte, bufferSize*frameSize),
	}
	r.worker = worker.New(r.workCycle)

	// Prefill to minimize underrun probability before the reactor ever
	// starts pulling frames.
	complete, err := r.workCycle()
	if err != nil {
		sf.Close()
		return nil, err
	}
	if complete {
		r.worker.MarkDone(nil)
	} else {
		r.worker.Start()
	}

	return r, nil
}

// workCycle writes as many frames as fit in the ring buffer, the
// configured buffer size, and the remaining needed frames - whichever is
// smallest - and reports whether the whole transfer is now done.
func (r *Reader) workCycle() (bool, error) {
	done := r.done.Load()
	if done >= r.needed {
		return true, nil
	}

	writableBytes := r.ring.AvailableWrite()
	writableFrames := writableBytes / uint64(r.frameSize)
	if writableFrames > uint64(r.bufferSize) {
		writableFrames = uint64(r.bufferSize)
	}
	remain := r.needed - done
	if writableFrames > remain {
		writableFrames = remain
	}
	if writableFrames == 0 {
		return false, nil
	}

	n, err := r.sf.ReadFloat(r.scratchFloats[:writableFrames*uint64(r.channels)], int(writableFrames))
	if err != nil {
		return false, err
	}
	if uint64(n) != writableFrames {
		return false, fmt.Errorf("%w: read %d frames, requested %d", ErrPrematureEOF, n, writableFrames)
	}

	byteCount := writableFrames * uint64(r.frameSize)
	pcm.EncodeFloat32Slice(r.scratchBytes[:byteCount], r.scratchFloats[:writableFrames*uint64(r.channels)])
	r.ring.Write(r.scratchBytes[:byteCount]) // sole producer: always succeeds in full

	newDone := done + writableFrames
	r.done.Store(newDone)
	return newDone >= r.needed, nil
}

// Ring returns the ring buffer the reactor drains from in its process
// callback.
func (r *Reader) Ring() *ringbuffer.RingBuffer { return r.ring }

// Channels returns the output channel count this reader was opened for.
func (r *Reader) Channels() int { return r.channels }

// Needed returns the total number of frames this reader will transfer.
func (r *Reader) Needed() uint64 { return r.needed }

// Done returns the number of frames transferred into the ring so far.
func (r *Reader) Done() uint64 { return r.done.Load() }

// Finished reports whether the reader has transferred everything it
// needs to.
func (r *Reader) Finished() bool { return r.worker.Finished() }

// Wake notifies the background worker that ring space may have opened
// up. Called by the reactor after draining the ring in its process
// callback.
func (r *Reader) Wake() { r.worker.Wake() }

// Stop requests the worker to stop, waits for it to exit, closes the
// playback file, and returns any error captured from a work cycle.
func (r *Reader) Stop() error {
	err := r.worker.Stop()
	if cerr := r.sf.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
