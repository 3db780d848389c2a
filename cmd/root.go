package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prodylabs/voicenote/internal/config"
	"github.com/prodylabs/voicenote/internal/device"
	"github.com/prodylabs/voicenote/internal/session"
	"github.com/prodylabs/voicenote/internal/store"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "voicenote",
	Short: "Voice note capture and playback from the terminal",
	Long: `Voicenote records short voice clips through ffmpeg and plays them
back through ffplay. Clips are stored in a dedicated recordings
directory with timestamped names.

Recordings stop automatically at the configured maximum duration,
or earlier on Ctrl+C.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verboseLevel)

		// config init must run before a config file exists
		if cmd.HasParent() && cmd.Parent().Name() == "config" {
			return nil
		}

		if cfgFile == "" {
			cfgFile = config.DefaultPath()
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/voicenote.yaml)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=ffmpeg output")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int) {
	slogLevel := slog.LevelInfo
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(handler))

	if level >= 2 {
		os.Setenv("FFMPEG_LOGLEVEL", "debug")
	}
}

// buildStore creates the clip store from the loaded config.
func buildStore() *store.Store {
	return store.New(cfg.Recordings.Directory, cfg.Recordings.FilePrefix, cfg.Recordings.Extension)
}

// buildManager wires the devices, store and session manager together.
func buildManager(st *store.Store) *session.Manager {
	capture := device.NewFFmpegCapture(cfg.Capture.Command, cfg.Capture.InputFormat, cfg.Capture.InputDevice)
	playback := device.NewFFplayPlayback(cfg.Playback.Command, cfg.Playback.ProbeCommand)

	return session.New(session.Config{
		MaxDuration:  cfg.Recordings.MaxDuration,
		PollInterval: cfg.Recordings.PollInterval,
		Profile: device.CaptureProfile{
			SampleRate:  cfg.Capture.SampleRate,
			Channels:    cfg.Capture.Channels,
			BitrateKbps: cfg.Capture.BitrateKbps,
		},
		ProbeCommand: cfg.Playback.ProbeCommand,
	}, capture, playback, st, slog.Default())
}
