package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prodylabs/voicenote/internal/device"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [clip]",
	Short: "Show size and duration of a recorded voice note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st := buildStore()

		path := args[0]
		if !filepath.IsAbs(path) {
			resolved, err := st.Resolve(path)
			if err != nil {
				return err
			}
			path = resolved
		}

		fi, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat clip: %w", err)
		}

		duration := device.ProbeDuration(cfg.Playback.ProbeCommand, path)

		fmt.Printf("Path:     %s\n", path)
		fmt.Printf("Size:     %d bytes\n", fi.Size())
		fmt.Printf("Modified: %s\n", fi.ModTime().Format(time.RFC3339))
		if duration > 0 {
			fmt.Printf("Duration: %s\n", duration.Round(time.Millisecond))
		} else {
			fmt.Println("Duration: unknown")
		}
		return nil
	},
}
