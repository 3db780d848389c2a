package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prodylabs/voicenote/internal/session"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a voice note from the default input",
	Long: `Record starts capturing immediately and stops on Ctrl+C or when the
configured maximum duration is reached. The committed clip path and its
duration are printed on success.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st := buildStore()
		mgr := buildManager(st)
		defer mgr.Release()

		path, err := mgr.StartRecording()
		if err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
		slog.Info("Recording... Press Ctrl+C to stop", "path", path)

		// Show elapsed time and input level while capturing.
		snapshots, cancel := mgr.Subscribe(8)
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

	wait:
		for {
			select {
			case <-sigChan:
				break wait
			case snap, ok := <-snapshots:
				if !ok {
					break wait
				}
				if !snap.Recording {
					// Auto-stop at max duration already committed the clip.
					break wait
				}
				fmt.Fprintf(os.Stderr, "\r  %6.1fs  level %4.0f%%", snap.Elapsed.Seconds(), snap.Amplitude*100)
			}
		}
		fmt.Fprintln(os.Stderr)

		committed, duration, err := mgr.StopRecording()
		if errors.Is(err, session.ErrNoActiveRecording) {
			// The max-duration auto-stop already committed the clip.
			slog.Debug("recording already stopped", "error", err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to stop recording: %w", err)
		}

		fmt.Printf("Saved %s (%s)\n", committed, duration.Round(time.Millisecond))
		return nil
	},
}
