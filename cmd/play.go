package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [clip]",
	Short: "Play a recorded voice note",
	Long: `Play a clip by name from the recordings directory, or by path.
With no argument the most recent clip is played. Blocks until the clip
finishes or Ctrl+C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st := buildStore()
		mgr := buildManager(st)
		defer mgr.Release()

		var source string
		switch {
		case len(args) == 0:
			clips, err := st.List()
			if err != nil {
				return fmt.Errorf("failed to list clips: %w", err)
			}
			if len(clips) == 0 {
				return fmt.Errorf("no clips in %s", st.Dir())
			}
			source = clips[0].Path
		case filepath.IsAbs(args[0]):
			source = args[0]
		default:
			resolved, err := st.Resolve(args[0])
			if err != nil {
				return err
			}
			source = resolved
		}

		if err := mgr.StartPlayback(source); err != nil {
			return fmt.Errorf("failed to start playback: %w", err)
		}
		fmt.Printf("Playing %s\n", filepath.Base(source))

		snapshots, cancel := mgr.Subscribe(8)
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		for {
			select {
			case <-sigChan:
				fmt.Fprintln(os.Stderr)
				mgr.StopPlayback()
				return nil
			case snap, ok := <-snapshots:
				if !ok || !snap.Playing {
					fmt.Fprintln(os.Stderr)
					return nil
				}
				elapsed := time.Duration(snap.Progress * float64(snap.Total)).Round(time.Second)
				fmt.Fprintf(os.Stderr, "\r  %s / %s", elapsed, snap.Total.Round(time.Second))
			}
		}
	},
}
