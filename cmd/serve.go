// =============================================================================
// Weight Merge - Serve Command
// =============================================================================
//
// COMMAND USAGE:
//   weightmerge serve [--addr :8080]
//
// Serves POST /merge and GET /healthz until interrupted. SIGINT and SIGTERM
// trigger a graceful shutdown.
//
// =============================================================================

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/weight-merge/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the merge endpoint over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := server.ConfigFrom(appConfig)
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return server.New(cfg, profiles, log).ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr from config)")
}
