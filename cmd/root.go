// Package cmd implements the audiobridge command-line interface: a
// single command that parses flags into an internal/config.Config,
// resolves --channels/--version short-circuits, and otherwise hands off
// to internal/driver.Run for the duration of the session.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/drgolem/audiobridge/internal/audioclient"
	"github.com/drgolem/audiobridge/internal/config"
	"github.com/drgolem/audiobridge/internal/driver"
)

// version is overridden at build time via -ldflags.
var version = "dev"

var (
	flagChannels          bool
	flagDebug             bool
	flagBuffer            int
	flagIn                string
	flagInputChannelCount int
	flagOut               string
	flagDuration          float64
	flagStart             float64
	flagReadFile          string
	flagWriteFile         string
	flagVersion           bool
)

var rootCmd = &cobra.Command{
	Use:   "audiobridge",
	Short: "Real-time multichannel audio bridge",
	Long: `audiobridge simultaneously plays a multichannel audio file to an audio
server's output ports and/or records from the server's input ports to a
file, for the duration of the playback file, a user-specified time, or
until interrupted.

It registers virtual ports against a low-latency audio server, wires them
to named physical ports, and shuttles samples between file I/O and the
server's real-time callback without dropouts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBridge,
}

func init() {
	flags := rootCmd.Flags()
	flags.BoolVarP(&flagChannels, "channels", "c", false, "enumerate physical ports and exit")
	flags.BoolVarP(&flagDebug, "debug", "d", false, "raise log level to debug")
	flags.IntVarP(&flagBuffer, "buffer", "b", config.DefaultBufferSize, "ring size in frames")
	flags.StringVarP(&flagIn, "in", "i", "", "comma-separated input (capture-side) server ports")
	flags.IntVarP(&flagInputChannelCount, "input-channel-count", "I", 0, "truncate default input port list")
	flags.StringVarP(&flagOut, "out", "o", "", "comma-separated output (playback-side) server ports")
	flags.Float64VarP(&flagDuration, "duration", "D", 0, "seconds; 0 = unbounded capture / file length for playback")
	flags.Float64VarP(&flagStart, "start", "s", 0, "seconds into playback file")
	flags.StringVarP(&flagReadFile, "read-file", "r", "", "playback file")
	flags.StringVarP(&flagWriteFile, "write-file", "w", "", "record file")
	flags.BoolVarP(&flagVersion, "version", "v", false, "print version and exit")
}

// Execute runs the root command. Called once from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "audiobridge:", err)
		os.Exit(1)
	}
}

func runBridge(cmd *cobra.Command, args []string) error {
	if flagVersion {
		fmt.Println("audiobridge", version)
		return nil
	}

	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if cmd.Flags().Changed("in") && cmd.Flags().Changed("input-channel-count") {
		return fmt.Errorf("--in and --input-channel-count are mutually exclusive")
	}

	cfg := config.Config{
		BufferSize:            flagBuffer,
		InputPorts:            splitPortsOrDefault(flagIn),
		OutputPorts:           splitPortsOrDefault(flagOut),
		InputChannelCount:     flagInputChannelCount,
		InputFile:             flagReadFile,
		OutputFile:            flagWriteFile,
		DurationSecs:          flagDuration,
		StartOffsetSecs:       flagStart,
		ShowPorts:             flagChannels,
		Debug:                 flagDebug,
		PhysicalCaptureCount:  2,
		PhysicalPlaybackCount: 2,
	}

	if cfg.ShowPorts {
		return showPorts(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		<-sigCh
		slog.Info("received interrupt, stopping session")
		close(stop)
	}()
	defer signal.Stop(sigCh)

	result, err := driver.Run(cfg, stop)
	fmt.Printf("frames read: %d\n", result.FramesRead)
	fmt.Printf("frames written: %d\n", result.FramesWritten)
	if err != nil {
		return err
	}
	return nil
}

func showPorts(cfg config.Config) error {
	client, err := audioclient.Open(config.ClientName, audioclient.Config{
		SampleRate:            cfg.SampleRate(),
		PhysicalCaptureCount:  cfg.PhysicalCaptureCount,
		PhysicalPlaybackCount: cfg.PhysicalPlaybackCount,
	})
	if err != nil {
		return err
	}
	defer client.Close()
	for _, name := range client.EnumeratePorts(audioclient.PhysicalCapture) {
		fmt.Println(name)
	}
	for _, name := range client.EnumeratePorts(audioclient.PhysicalPlayback) {
		fmt.Println(name)
	}
	return nil
}

func splitPortsOrDefault(csv string) []string {
	if csv == "" {
		return config.DefaultPortsSentinel
	}
	parts := strings.Split(csv, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
