package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded voice notes, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st := buildStore()
		clips, err := st.List()
		if err != nil {
			return fmt.Errorf("failed to list clips: %w", err)
		}
		if len(clips) == 0 {
			fmt.Printf("No clips in %s\n", st.Dir())
			return nil
		}

		for _, clip := range clips {
			fmt.Printf("%s  %8d bytes  %s\n", clip.ModTime.Format("2006-01-02 15:04:05"), clip.Size, clip.Name)
		}
		return nil
	},
}
