package reader

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/drgolem/audiobridge/internal/soundfile"
)

func writeWAV(t *testing.T, path string, channels, sampleRate, frames int) {
	t.Helper()
	sf, err := soundfile.OpenWrite(path, channels, sampleRate)
	if err != nil {
		t.Fatalf("OpenWrite() error = %v", err)
	}
	data := make([]float32, frames*channels)
	for i := range data {
		data[i] = float32(i%100) / 100
	}
	if _, err := sf.WriteFloat(data, frames); err != nil {
		t.Fatalf("WriteFloat() error = %v", err)
	}
	if err := sf.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestNewPrefillCompletesSmallFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.wav")
	writeWAV(t, path, 2, 44100, 10)

	r, err := New(path, 44100, 2, 1024, 0, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer r.Stop()

	if !r.Finished() {
		t.Fatal("Finished() = false, want true (small file fits in one prefill)")
	}
	if r.Done() != 10 {
		t.Fatalf("Done() = %d, want 10", r.Done())
	}
	if r.Ring().AvailableRead() != uint64(10*r.frameSize) {
		t.Fatalf("ring has %d bytes available, want %d", r.Ring().AvailableRead(), 10*r.frameSize)
	}
}

func TestNewRejectsSampleRateMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rate.wav")
	writeWAV(t, path, 2, 44100, 10)

	_, err := New(path, 48000, 2, 1024, 0, 0)
	if err == nil {
		t.Fatal("expected sample rate mismatch error")
	}
}

func TestNewRejectsChannelMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chan.wav")
	writeWAV(t, path, 2, 44100, 10)

	_, err := New(path, 44100, 1, 1024, 0, 0)
	if err == nil {
		t.Fatal("expected channel mismatch error")
	}
}

func TestDurationLimitsFramesNeeded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dur.wav")
	writeWAV(t, path, 1, 1000, 1000) // 1 second of audio at 1000 Hz

	r, err := New(path, 1000, 1, 4096, 0.5, 0) // ask for half a second
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer r.Stop()

	if r.Needed() != 500 {
		t.Fatalf("Needed() = %d, want 500", r.Needed())
	}
}

func TestStartOffsetSeeksForward(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offset.wav")
	writeWAV(t, path, 1, 1000, 1000)

	r, err := New(path, 1000, 1, 4096, 0, 0.25) // skip first quarter second
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer r.Stop()

	if r.Needed() != 750 {
		t.Fatalf("Needed() = %d, want 750", r.Needed())
	}
}

func TestLargeFileSpawnsWorker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.wav")
	// Bigger than the buffer_size frame budget, forcing the worker to run.
	writeWAV(t, path, 1, 44100, 8000)

	r, err := New(path, 44100, 1, 1024, 0, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	drain := make([]byte, 4096*r.frameSize)
	deadline := time.Now().Add(2 * time.Second)
	for !r.Finished() && time.Now().Before(deadline) {
		r.Ring().Read(drain)
		r.Wake()
		time.Sleep(2 * time.Millisecond)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !r.Finished() {
		t.Fatal("Finished() = false after draining, want true")
	}
	if r.Done() != 8000 {
		t.Fatalf("Done() = %d, want 8000", r.Done())
	}
}
