// Package driver wires the audio bridge's components together in the
// control thread: it opens the audio client, resolves default port
// lists, constructs whichever of Reader/Writer the configuration calls
// for, builds the Reactor, and blocks until the session finishes.
package driver

import (
	"fmt"
	"log/slog"

	"github.com/drgolem/audiobridge/internal/audioclient"
	"github.com/drgolem/audiobridge/internal/config"
	"github.com/drgolem/audiobridge/internal/reactor"
	"github.com/drgolem/audiobridge/internal/reader"
	"github.com/drgolem/audiobridge/internal/soundfile"
	"github.com/drgolem/audiobridge/internal/writer"
)

// Result reports the session's final frame counts, for the CLI to print.
type Result struct {
	FramesRead    uint64
	FramesWritten uint64
}

// Run opens the audio client, wires up a Reader and/or Writer per cfg,
// constructs the Reactor, and blocks until the session's finished signal
// fires (either by reaching its needed frame count or by stop being
// invoked from outside, e.g. on an interrupt signal).
//
// stop is a channel the caller closes (or sends on) to request an early,
// clean shutdown - the caller is expected to wire this to signal.Notify
// for SIGINT/SIGTERM.
func Run(cfg config.Config, stop <-chan struct{}) (Result, error) {
	framesPerBuffer := cfg.FramesPerBuffer
	if framesPerBuffer == 0 {
		framesPerBuffer = config.DefaultFramesPerBuffer
	}
	client, err := audioclient.Open(config.ClientName, audioclient.Config{
		SampleRate:            cfg.SampleRate(),
		DeviceIndex:           cfg.DeviceIndex,
		FramesPerBuffer:       framesPerBuffer,
		PhysicalCaptureCount:  cfg.PhysicalCaptureCount,
		PhysicalPlaybackCount: cfg.PhysicalPlaybackCount,
	})
	if err != nil {
		return Result{}, fmt.Errorf("opening audio client: %w", err)
	}
	defer client.Close()

	inputPorts := cfg.InputPorts
	if config.IsDefaultPorts(inputPorts) {
		inputPorts = client.EnumeratePorts(audioclient.PhysicalCapture)
		if cfg.InputChannelCount > 0 && cfg.InputChannelCount < len(inputPorts) {
			inputPorts = inputPorts[:cfg.InputChannelCount]
		}
	}

	outputPorts := cfg.OutputPorts
	if config.IsDefaultPorts(outputPorts) {
		outputPorts = client.EnumeratePorts(audioclient.PhysicalPlayback)
		if cfg.InputFile != "" {
			if info, err := soundfile.QueryInfo(cfg.InputFile); err == nil && info.Channels < len(outputPorts) {
				outputPorts = outputPorts[:info.Channels]
			}
		}
	}

	var rd *reader.Reader
	if cfg.InputFile != "" {
		rd, err = reader.New(cfg.InputFile, cfg.SampleRate(), len(outputPorts), cfg.BufferSize, cfg.DurationSecs, cfg.StartOffsetSecs)
		if err != nil {
			return Result{}, fmt.Errorf("constructing reader: %w", err)
		}
	}

	var wr *writer.Writer
	if cfg.OutputFile != "" {
		wr, err = writer.New(cfg.OutputFile, cfg.SampleRate(), len(inputPorts), cfg.BufferSize, cfg.DurationSecs)
		if err != nil {
			if rd != nil {
				rd.Stop()
			}
			return Result{}, fmt.Errorf("constructing writer: %w", err)
		}
	}

	rx, err := reactor.New(client, inputPorts, outputPorts, rd, wr)
	if err != nil {
		stopAll(rd, wr)
		return Result{}, fmt.Errorf("constructing reactor: %w", err)
	}

	finished := make(chan error, 1)
	go func() { finished <- rx.WaitFinished() }()

	var waitErr error
	select {
	case waitErr = <-finished:
	case <-stop:
		slog.Info("stop requested, tearing down session")
		rx.Close()
		waitErr = <-finished
	}

	var stopErr error
	if rd != nil {
		if e := rd.Stop(); e != nil {
			stopErr = e
		}
	}
	if wr != nil {
		if e := wr.Stop(); e != nil && stopErr == nil {
			stopErr = e
		}
	}

	result := Result{}
	if rd != nil {
		result.FramesRead = rd.Done()
	}
	if wr != nil {
		result.FramesWritten = wr.Done()
	}

	if waitErr != nil {
		return result, waitErr
	}
	if stopErr != nil {
		return result, stopErr
	}
	return result, nil
}

func stopAll(rd *reader.Reader, wr *writer.Writer) {
	if rd != nil {
		rd.Stop()
	}
	if wr != nil {
		wr.Stop()
	}
}
