// Package config holds the bridge's runtime configuration: the struct
// that the CLI layer populates from flags and that the driver treats as
// immutable once validated. Parsing, help/version text, and port
// enumeration are the CLI layer's job; this package only knows about the
// resulting values and their validity.
package config

import "fmt"

// DefaultBufferSize is the ring buffer size, in frames, used when -b/--buffer
// is not given.
const DefaultBufferSize = 8192

// DefaultSampleRate is the engine sample rate used when the audio server
// does not report one of its own.
const DefaultSampleRate = 48000

// DefaultFramesPerBuffer is the audio server callback period used when
// none is configured.
const DefaultFramesPerBuffer = 256

// ClientName is the name the bridge registers with the audio server.
const ClientName = "audiobridge"

// DefaultPortsSentinel marks an input or output port list as "not set by
// the user", to be replaced by the audio server's physical port
// enumeration once the client is open.
var DefaultPortsSentinel = []string{"__default"}

// Config is the fully-resolved set of options the driver needs to wire
// up a bridge session.
type Config struct {
	BufferSize        int
	InputPorts        []string
	OutputPorts       []string
	InputChannelCount int
	InputFile         string
	OutputFile        string
	DurationSecs      float64
	StartOffsetSecs   float64
	ShowPorts         bool
	ShowVersion       bool
	Debug             bool
	DeviceIndex       int
	FramesPerBuffer   int

	// EngineSampleRate is the fixed server sample rate the Reader's
	// playback file must match. 0 means DefaultSampleRate.
	EngineSampleRate int

	// PhysicalCaptureCount and PhysicalPlaybackCount describe the audio
	// server's own hardware port counts, used to synthesize default port
	// lists when -i/-o are not given.
	PhysicalCaptureCount  int
	PhysicalPlaybackCount int
}

// SampleRate returns the configured engine sample rate, or
// DefaultSampleRate if unset.
func (c *Config) SampleRate() int {
	if c.EngineSampleRate == 0 {
		return DefaultSampleRate
	}
	return c.EngineSampleRate
}

// IsDefaultPorts reports whether ports is still the unresolved sentinel
// value, i.e. the user did not pass -i/--in or -o/--out.
func IsDefaultPorts(ports []string) bool {
	return len(ports) == 1 && ports[0] == DefaultPortsSentinel[0]
}

// Validate checks the cross-field rules that a flag parser cannot express
// on its own. It does not check ShowPorts/ShowVersion, which bypass these
// rules entirely.
func (c *Config) Validate() error {
	if c.OutputFile == "" && c.InputFile == "" {
		return fmt.Errorf("nothing to do: specify at least one of --read-file or --write-file")
	}
	if c.OutputFile != "" && c.InputFile == "" && c.DurationSecs == 0 {
		return fmt.Errorf("recording without a playback file requires an explicit --duration")
	}
	if c.DurationSecs < 0 {
		return fmt.Errorf("--duration must not be negative")
	}
	if c.StartOffsetSecs < 0 {
		return fmt.Errorf("--start must not be negative")
	}
	return nil
}
