// Package reactor owns the audio server's real-time process callback:
// it demuxes a Reader's ring buffer into the output buffer, muxes the
// input buffer into a Writer's ring buffer, and tracks frame completion.
// Only one Reactor may exist at a time, mirroring a JACK client's single
// active process callback.
package reactor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/drgolem/audiobridge/internal/audioclient"
	"github.com/drgolem/audiobridge/internal/reader"
	"github.com/drgolem/audiobridge/internal/writer"
	"github.com/drgolem/audiobridge/pkg/types"
)

// ErrSingletonViolation means a Reactor was constructed while another
// one is still active.
var ErrSingletonViolation = errors.New("a reactor is already active")

// ErrConnect means the audio client failed to connect a registered port.
var ErrConnect = errors.New("port connection failed")

// ioClient is the subset of *audioclient.Client the reactor needs for
// setup and teardown. Kept as an interface (rather than the concrete
// type) purely so tests can substitute a fake audio backend; every
// method here runs once at startup/shutdown, never per audio frame.
type ioClient interface {
	RegisterPort(shortName string, dir audioclient.Direction) (*audioclient.Port, error)
	Connect(from, to string) error
	SetProcessCallback(fn audioclient.ProcessFunc)
	Activate() error
	Deactivate() error
	UnregisterAllPorts()
}

var (
	instanceMu sync.Mutex
	instance   *Reactor
)

// Reactor drives the engine's single real-time process callback. Reader
// and Writer are held as concrete types, never behind an interface: the
// process callback must never pay for dynamic dispatch.
type Reactor struct {
	client ioClient
	reader *reader.Reader
	writer *writer.Writer

	inputPorts  []*audioclient.Port
	outputPorts []*audioclient.Port

	needed uint64
	done   atomic.Uint64

	underruns atomic.Uint64
	overruns  atomic.Uint64

	finishMu   sync.Mutex
	fired      bool
	finishedCh chan struct{}
	finishErr  error

	activated bool
}

// New registers ports for whichever of rd/wr are non-nil, installs the
// process callback, activates the client, and connects the registered
// ports to the given server-side port names. Either rd or wr (but not
// both) may be nil; at least one must be non-nil.
func New(client ioClient, inputPortNames, outputPortNames []string, rd *reader.Reader, wr *writer.Writer) (*Reactor, error) {
	instanceMu.Lock()
	if instance != nil {
		instanceMu.Unlock()
		return nil, ErrSingletonViolation
	}
	r := &Reactor{
		client:     client,
		reader:     rd,
		writer:     wr,
		finishedCh: make(chan struct{}),
		needed:     computeNeeded(rd, wr),
	}
	instance = r
	instanceMu.Unlock()

	if wr != nil {
		r.inputPorts = make([]*audioclient.Port, len(inputPortNames))
		for i := range inputPortNames {
			p, err := client.RegisterPort(fmt.Sprintf("input_%d", i), audioclient.Input)
			if err != nil {
				r.teardown()
				return nil, fmt.Errorf("registering input port %d: %w", i, err)
			}
			r.inputPorts[i] = p
		}
	}
	if rd != nil {
		r.outputPorts = make([]*audioclient.Port, len(outputPortNames))
		for i := range outputPortNames {
			p, err := client.RegisterPort(fmt.Sprintf("output_%d", i), audioclient.Output)
			if err != nil {
				r.teardown()
				return nil, fmt.Errorf("registering output port %d: %w", i, err)
			}
			r.outputPorts[i] = p
		}
	}

	client.SetProcessCallback(r.process)

	if err := client.Activate(); err != nil {
		r.teardown()
		return nil, err
	}
	r.activated = true

	if wr != nil {
		for i, name := range inputPortNames {
			if err := client.Connect(name, r.inputPorts[i].FullName); err != nil {
				r.teardown()
				return nil, fmt.Errorf("%w: %s -> %s: %v", ErrConnect, name, r.inputPorts[i].FullName, err)
			}
		}
	}
	if rd != nil {
		for i, name := range outputPortNames {
			if err := client.Connect(r.outputPorts[i].FullName, name); err != nil {
				r.teardown()
				return nil, fmt.Errorf("%w: %s -> %s: %v", ErrConnect, r.outputPorts[i].FullName, name, err)
			}
		}
	}

	return r, nil
}

// computeNeeded follows the reader's frame count when the writer is
// unbounded (needed == 0), and the larger of the two otherwise - a
// duplex session runs until both sides have what they need.
func computeNeeded(rd *reader.Reader, wr *writer.Writer) uint64 {
	var rN, wN uint64
	if rd != nil {
		rN = rd.Needed()
	}
	if wr != nil {
		wN = wr.Needed()
	}
	switch {
	case rd != nil && wr != nil:
		if wN == 0 {
			return rN
		}
		if rN > wN {
			return rN
		}
		return wN
	case rd != nil:
		return rN
	case wr != nil:
		return wN
	default:
		return 0
	}
}

func (r *Reactor) teardown() {
	if r.activated {
		r.client.Deactivate()
		r.activated = false
	}
	r.client.UnregisterAllPorts()
	instanceMu.Lock()
	if instance == r {
		instance = nil
	}
	instanceMu.Unlock()
}

// Close deactivates the stream, unregisters ports, releases the
// singleton slot, and fires the finished signal if it has not fired yet,
// so a pending WaitFinished returns.
func (r *Reactor) Close() error {
	r.teardown()
	r.signalFinished(nil)
	return nil
}

// Underruns returns the number of process cycles that found the
// reader's ring buffer starved.
func (r *Reactor) Underruns() uint64 { return r.underruns.Load() }

// Overruns returns the number of process cycles that found the writer's
// ring buffer full.
func (r *Reactor) Overruns() uint64 { return r.overruns.Load() }

// process is the real-time callback. It must never block, allocate, or
// touch the filesystem.
func (r *Reactor) process(frameCount int, input, output []byte) error {
	if r.reader != nil {
		r.playback(frameCount, output)
	}
	if r.writer != nil {
		r.capture(frameCount, input)
	}

	done := r.done.Add(uint64(frameCount))
	if r.needed > 0 && done >= r.needed {
		r.signalFinished(nil)
	}
	return nil
}

// playback demuxes as many frames as are available from the reader's
// ring into output, then mutes any remaining tail. Ring access is a
// bulk byte copy: the ring only ever holds whole frames (the reader
// writes frame-aligned chunks), so floor division by frame size always
// yields a frame-aligned amount to copy.
func (r *Reactor) playback(frameCount int, output []byte) {
	channels := r.reader.Channels()
	frameSize := types.FrameSize(channels)
	wantBytes := frameCount * frameSize
	if len(output) < wantBytes {
		wantBytes = len(output)
	}

	ring := r.reader.Ring()
	availFrames := ring.AvailableRead() / uint64(frameSize)
	copyFrames := uint64(frameCount)
	if availFrames < copyFrames {
		copyFrames = availFrames
	}
	copyBytes := int(copyFrames) * frameSize

	if copyBytes > 0 {
		ring.Read(output[:copyBytes])
	}
	if int(copyFrames) < frameCount {
		if !r.reader.Finished() {
			r.underruns.Add(1)
			slog.Warn("playback underrun", "frames_short", frameCount-int(copyFrames))
		}
		clear(output[copyBytes:wantBytes])
	}

	if !r.reader.Finished() {
		r.reader.Wake()
	}
}

// capture muxes as many frames as fit into the writer's ring from input,
// dropping the rest as an overrun. Dropped input is discarded (the
// overrun is counted and logged), matching a real audio bridge's only option when the consumer can't
// keep up: there is nowhere else to put the samples.
func (r *Reactor) capture(frameCount int, input []byte) {
	if r.writer.Finished() {
		return
	}

	channels := r.writer.Channels()
	frameSize := types.FrameSize(channels)

	ring := r.writer.Ring()
	availFrames := ring.AvailableWrite() / uint64(frameSize)
	copyFrames := uint64(frameCount)
	if availFrames < copyFrames {
		copyFrames = availFrames
	}
	copyBytes := int(copyFrames) * frameSize

	if copyBytes > 0 {
		ring.Write(input[:copyBytes])
	}
	if int(copyFrames) < frameCount {
		r.overruns.Add(1)
		slog.Warn("capture overrun", "frames_dropped", frameCount-int(copyFrames))
	}

	if !r.writer.Finished() {
		r.writer.Wake()
	}
}

func (r *Reactor) signalFinished(err error) {
	r.finishMu.Lock()
	defer r.finishMu.Unlock()
	if r.fired {
		return
	}
	r.fired = true
	r.finishErr = err
	close(r.finishedCh)
}

// WaitFinished blocks until the needed frame count has been reached,
// deactivates the stream, and returns any error recorded by the process
// callback.
func (r *Reactor) WaitFinished() error {
	<-r.finishedCh
	if r.activated {
		r.client.Deactivate()
		r.activated = false
	}
	return r.finishErr
}
