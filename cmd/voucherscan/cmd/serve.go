package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/voucherscan/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the voucher scan API",
	Long: `Start an HTTP server that provides REST API endpoints for voucher scanning.

The server provides the following endpoints:
  POST /scan     - Scan an uploaded voucher image
  POST /scan/pdf - Scan an uploaded PDF voucher sheet
  GET  /vouchers - List stored voucher records
  GET  /live     - Websocket feed of completed scans
  GET  /healthz  - Health check endpoint
  GET  /metrics  - Prometheus metrics

Examples:
  voucherscan serve
  voucherscan serve --port 8080
  voucherscan serve --host 0.0.0.0 --port 3000`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		corsOrigin := cfg.Server.CORSOrigin
		if cmd.Flags().Changed("cors-origin") {
			corsOrigin, _ = cmd.Flags().GetString("cors-origin")
		}

		maxUploadMB := cfg.Server.MaxUploadMB
		if cmd.Flags().Changed("max-upload-size") {
			maxUploadMB, _ = cmd.Flags().GetInt("max-upload-size")
		}

		timeout := cfg.Server.TimeoutSec
		if cmd.Flags().Changed("timeout") {
			timeout, _ = cmd.Flags().GetInt("timeout")
		}

		backend, err := openStoreBackend(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := backend.close(); err != nil {
				fmt.Fprintf(os.Stderr, "Error closing store: %v\n", err)
			}
		}()

		pl, err := buildPipeline(cfg, backend.recorder)
		if err != nil {
			return fmt.Errorf("failed to build scan pipeline: %w", err)
		}
		defer func() {
			if err := pl.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Error closing pipeline: %v\n", err)
			}
		}()

		serverCfg := server.Config{
			Host:        host,
			Port:        port,
			CORSOrigin:  corsOrigin,
			MaxUploadMB: int64(maxUploadMB),
			TimeoutSec:  timeout,
		}
		srv := server.New(serverCfg, pl, backend.lister, nil)
		defer func() { _ = srv.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return srv.ListenAndServe(ctx, serverCfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origin")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 60, "request timeout in seconds")
}
