package cmd

import (
	"fmt"

	"github.com/prodylabs/voicenote/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server for remote control",
	Long: `Start the voicenote web server to control recording and playback over
HTTP. State snapshots are pushed to connected clients over a websocket,
so any device on the same network can act as a remote.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")
		if listen == "" {
			listen = cfg.Server.Listen
		}

		st := buildStore()
		mgr := buildManager(st)
		defer mgr.Release()

		srv := server.New(mgr, st, listen)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (overrides config, e.g. :8080)")
}
