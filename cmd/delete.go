package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [clip]...",
	Short: "Delete recorded voice notes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st := buildStore()
		for _, name := range args {
			if st.Delete(name) {
				fmt.Printf("Deleted %s\n", name)
			} else {
				fmt.Printf("Not found: %s\n", name)
			}
		}
		return nil
	},
}
