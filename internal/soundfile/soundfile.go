// Package soundfile wraps WAV file access for the bridge's Reader and
// Writer: float32 sample streaming in and out, decoupled from the
// underlying PCM bit depth and container details.
package soundfile

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Info describes a playback file's format, read from its header.
type Info struct {
	Frames     int64
	Channels   int
	SampleRate int
}

// SoundFile is either a read-mode or a write-mode handle, never both.
// Read mode decodes the entire file into memory at Open time and serves
// ReadFloat from that buffer; write mode streams through a WAV encoder
// that patches its header on Close.
type SoundFile struct {
	file    *os.File
	decoder *wav.Decoder
	encoder *wav.Encoder

	channels   int
	sampleRate int

	// read-mode state
	pcm       []int
	cursor    int64
	readScale float32

	// write-mode state
	writeScratch *audio.IntBuffer
}

// QueryInfo reads just enough of a WAV file's header to report its
// channel count and sample rate, without decoding any audio.
func QueryInfo(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Info{}, fmt.Errorf("%s is not a valid WAV file", path)
	}
	return Info{Channels: int(dec.NumChans), SampleRate: int(dec.SampleRate)}, nil
}

// OpenRead opens path for reading, decodes it fully into memory, and
// returns a SoundFile positioned at frame 0 along with its format info.
func OpenRead(path string) (*SoundFile, Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Info{}, fmt.Errorf("can't open playback file: %w", err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, Info{}, fmt.Errorf("%s is not a valid WAV file", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		f.Close()
		return nil, Info{}, fmt.Errorf("decoding playback file %s: %w", path, err)
	}

	channels := buf.Format.NumChannels
	var frames int64
	if channels > 0 {
		frames = int64(len(buf.Data) / channels)
	}

	srcBits := buf.SourceBitDepth
	if srcBits <= 0 {
		srcBits = int(dec.BitDepth)
	}
	if srcBits <= 0 {
		srcBits = 16
	}

	sf := &SoundFile{
		file:       f,
		decoder:    dec,
		channels:   channels,
		sampleRate: buf.Format.SampleRate,
		pcm:        buf.Data,
		readScale:  float32(int64(1) << uint(srcBits-1)),
	}
	return sf, Info{Frames: frames, Channels: channels, SampleRate: sf.sampleRate}, nil
}

// OpenWrite creates path for writing as a 32-bit PCM WAV file with the
// given format.
func OpenWrite(path string, channels, sampleRate int) (*SoundFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("can't open recording file: %w", err)
	}

	enc := wav.NewEncoder(f, sampleRate, 32, channels, 1)
	return &SoundFile{
		file:       f,
		encoder:    enc,
		channels:   channels,
		sampleRate: sampleRate,
		writeScratch: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: 32,
		},
	}, nil
}

// Channels returns the file's channel count.
func (s *SoundFile) Channels() int { return s.channels }

// SampleRate returns the file's sample rate.
func (s *SoundFile) SampleRate() int { return s.sampleRate }

// Seek repositions a read-mode SoundFile to the given frame.
func (s *SoundFile) Seek(frame int64) error {
	if s.pcm == nil {
		return fmt.Errorf("seek not supported on a write-mode sound file")
	}
	total := int64(0)
	if s.channels > 0 {
		total = int64(len(s.pcm)) / int64(s.channels)
	}
	if frame < 0 || frame > total {
		return fmt.Errorf("seek frame %d out of range [0,%d]", frame, total)
	}
	s.cursor = frame
	return nil
}

// ReadFloat copies up to frames frames (channels samples each) into dst,
// normalized to [-1, 1], and returns how many frames were copied. It
// returns fewer than requested, with a nil error, only at end of file.
func (s *SoundFile) ReadFloat(dst []float32, frames int) (int, error) {
	if s.pcm == nil {
		return 0, fmt.Errorf("read not supported on a write-mode sound file")
	}

	total := int64(0)
	if s.channels > 0 {
		total = int64(len(s.pcm)) / int64(s.channels)
	}
	remaining := total - s.cursor
	n := int64(frames)
	if n > remaining {
		n = remaining
	}
	if n <= 0 {
		return 0, nil
	}

	start := s.cursor * int64(s.channels)
	count := n * int64(s.channels)
	for i := int64(0); i < count; i++ {
		dst[i] = float32(s.pcm[start+i]) / s.readScale
	}
	s.cursor += n

	return int(n), nil
}

const maxInt32Scale = math.MaxInt32

// WriteFloat encodes frames frames (channels samples each) from src as
// 32-bit PCM and appends them to the output file, clipping to [-1, 1].
func (s *SoundFile) WriteFloat(src []float32, frames int) (int, error) {
	if s.encoder == nil {
		return 0, fmt.Errorf("write not supported on a read-mode sound file")
	}
	count := frames * s.channels
	if cap(s.writeScratch.Data) < count {
		s.writeScratch.Data = make([]int, count)
	}
	data := s.writeScratch.Data[:count]
	for i := 0; i < count; i++ {
		v := src[i]
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		data[i] = int(float64(v) * maxInt32Scale)
	}
	s.writeScratch.Data = data

	if err := s.encoder.Write(s.writeScratch); err != nil {
		return 0, fmt.Errorf("writing recording file: %w", err)
	}
	return frames, nil
}

// Close flushes and closes the underlying file. For write-mode files
// this patches the WAV header with the final data size.
func (s *SoundFile) Close() error {
	var err error
	if s.encoder != nil {
		if e := s.encoder.Close(); e != nil {
			err = e
		}
	}
	if s.file != nil {
		if e := s.file.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
