// Command leecher runs the Leecher role standalone: fetch one file from
// the swarm, then promote to Seeder and keep serving it, per spec
// §AMBIENT-3 and §4.4 step 7.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dist-torrent/p2p-torrent/internal/config"
	"github.com/dist-torrent/p2p-torrent/internal/leecher"
	"github.com/dist-torrent/p2p-torrent/internal/telemetry"
)

var (
	trackerAddr string
	downloadDir string
	fileName    string
)

var rootCmd = &cobra.Command{
	Use:   "leecher",
	Short: "Run the Leecher role: download a file from the swarm and seed it",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := telemetry.New("leecher")

		if trackerAddr != "" {
			os.Setenv("TRACKER_ADDR", trackerAddr)
		}
		if downloadDir != "" {
			os.Setenv("DOWNLOAD_DIR", downloadDir)
		}
		lcfg, err := config.LoadLeecher()
		if err != nil {
			log.Errorw("configuration error", "err", err)
			os.Exit(2)
		}
		scfg, err := config.LoadSeeder()
		if err != nil {
			log.Errorw("configuration error", "err", err)
			os.Exit(2)
		}
		scfg.TrackerAddr = lcfg.TrackerAddr

		if fileName == "" {
			log.Error("--file is required")
			os.Exit(2)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		d := leecher.New(lcfg, scfg, log)
		handle, err := d.StartDownload(ctx, fileName, nil)
		if err != nil {
			if err == leecher.ErrNoSeeders {
				log.Errorw("no seeders for file", "file", fileName)
				os.Exit(4)
			}
			log.Errorw("download failed to start", "err", err)
			os.Exit(3)
		}

		result, err := handle.Wait()
		if err != nil {
			log.Errorw("download failed", "file", fileName, "err", err)
			if ctx.Err() != nil {
				os.Exit(130)
			}
			os.Exit(5)
		}

		log.Infow("download complete, now seeding", "file", fileName, "path", result.Path)
		<-ctx.Done()
		result.Seeder.Stop()
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVarP(&trackerAddr, "tracker", "t", "", "tracker address (overrides TRACKER_ADDR)")
	rootCmd.Flags().StringVarP(&downloadDir, "out", "o", "", "download directory (overrides DOWNLOAD_DIR)")
	rootCmd.Flags().StringVar(&fileName, "file", "", "name of the file to download, as registered with the tracker")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
