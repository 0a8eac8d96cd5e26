// Command seeder runs the Seeder role standalone, hosting one or more
// local files for a swarm, per spec §AMBIENT-3.
package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dist-torrent/p2p-torrent/internal/config"
	"github.com/dist-torrent/p2p-torrent/internal/telemetry"
	"github.com/dist-torrent/p2p-torrent/internal/seeder"
)

var (
	trackerAddr string
	bindAddr    string
	filesFlag   []string
)

var rootCmd = &cobra.Command{
	Use:   "seeder",
	Short: "Run the Seeder role: host local files and serve chunks over TCP",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := telemetry.New("seeder")

		if trackerAddr != "" {
			os.Setenv("TRACKER_ADDR", trackerAddr)
		}
		if bindAddr != "" {
			os.Setenv("SEEDER_BIND", bindAddr)
		}
		cfg, err := config.LoadSeeder()
		if err != nil {
			log.Errorw("configuration error", "err", err)
			os.Exit(2)
		}

		srv := seeder.New(cfg, log)
		for _, spec := range filesFlag {
			name, path, ok := strings.Cut(spec, "=")
			if !ok {
				path = spec
				name = pathBase(spec)
			}
			if err := srv.Host(name, path); err != nil {
				log.Errorw("failed to host file", "path", path, "err", err)
				os.Exit(2)
			}
		}

		return srv.Run()
	},
}

func pathBase(p string) string {
	i := strings.LastIndexAny(p, `/\`)
	if i < 0 {
		return p
	}
	return p[i+1:]
}

func init() {
	rootCmd.Flags().StringVarP(&trackerAddr, "tracker", "t", "", "tracker address (overrides TRACKER_ADDR)")
	rootCmd.Flags().StringVarP(&bindAddr, "bind", "b", "", "TCP address to serve chunks on (overrides SEEDER_BIND)")
	rootCmd.Flags().StringArrayVarP(&filesFlag, "file", "f", nil, "file to host, as name=path or a bare path (repeatable)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
