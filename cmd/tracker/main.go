// Command tracker runs the Tracker role standalone, per spec
// §AMBIENT-3. Grounded on the teacher's cmd/p2p-transfer/server.go for
// its cobra command shape, minus the interactive go-prompt shell (the
// teacher's "interactive file-picker UI" equivalent, out of scope here
// per spec §1).
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dist-torrent/p2p-torrent/internal/config"
	"github.com/dist-torrent/p2p-torrent/internal/telemetry"
	"github.com/dist-torrent/p2p-torrent/internal/tracker"
)

var (
	listenAddr string
	mdns       bool
)

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Run the Tracker role: a UDP directory of live seeders",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := telemetry.New("tracker")

		if listenAddr != "" {
			os.Setenv("TRACKER_ADDR", listenAddr)
		}
		cfg, err := config.LoadTracker()
		if err != nil {
			log.Errorw("configuration error", "err", err)
			os.Exit(2)
		}

		srv := tracker.New(cfg, log)
		return srv.Run(mdns)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&listenAddr, "addr", "a", "", "UDP address to listen on (overrides TRACKER_ADDR)")
	rootCmd.Flags().BoolVar(&mdns, "mdns", false, "advertise this tracker on the LAN via mDNS")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
