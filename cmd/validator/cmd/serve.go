package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"customer-statement-validator/cmd/validator/config"
	"customer-statement-validator/internal/metrics"
	"customer-statement-validator/internal/reconciler"
	"customer-statement-validator/internal/server"
	"customer-statement-validator/pkg/logger"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve statement validation over HTTP",
	Long: `Serve starts an HTTP server that accepts statement uploads.

Routes:
  POST /api/v1/validations   multipart upload in the "file" field,
                             ?format=json|csv|yaml|xlsx (default json)
  GET  /healthz              liveness probe
  GET  /metrics              Prometheus metrics

Examples:
  validator serve
  validator serve --listen 127.0.0.1:9000 --max-upload-bytes 5242880
  VALIDATOR_ENCODING=iso-8859-1 validator serve`,

	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := server.DefaultConfig()
	serveCmd.Flags().String(config.KeyListen, defaults.ListenAddr, "listen address")
	serveCmd.Flags().Int64(config.KeyMaxUploadBytes, defaults.MaxUploadBytes, "maximum upload size in bytes")
	serveCmd.Flags().Duration(config.KeyReadTimeout, defaults.ReadTimeout, "HTTP read timeout")
	serveCmd.Flags().Duration(config.KeyWriteTimeout, defaults.WriteTimeout, "HTTP write timeout")
	serveCmd.Flags().Duration(config.KeyShutdownTimeout, defaults.ShutdownTimeout, "graceful shutdown timeout")

	serveCmd.Flags().String(config.KeyEncoding, "utf-8", "input encoding: utf-8, iso-8859-1")
	serveCmd.Flags().Bool(config.KeyCheckIneligibleReferences, false,
		"include records without balances in duplicate reference detection; they may then be reported even though they count as skipped")
}

func runServe(cmd *cobra.Command, args []string) error {
	opts, err := config.LoadServeOptions(viper.GetViper())
	if err != nil {
		return err
	}

	serviceConfig, err := opts.Input.CreateServiceConfig()
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	service, err := reconciler.NewService(serviceConfig, collector)
	if err != nil {
		return err
	}

	srv, err := server.New(service, collector, opts.CreateServerConfig())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	logger.GetGlobalLogger().WithComponent("cli").WithFields(logger.Fields{
		"listen":           opts.Listen,
		"max_upload_bytes": opts.MaxUploadBytes,
		"suffixes":         service.SupportedSuffixes(),
	}).Info("Starting validation server")

	return srv.ListenAndServe(ctx)
}
