package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fiteanalytics/finx-go/internal/app"
	"github.com/fiteanalytics/finx-go/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local FinX gateway",
	Long: `Starts an HTTP server that forwards requests to the FinX API through one
shared client, so every local caller shares its response cache and, in socket
mode, its authenticated connection.

Endpoints:
  POST   /api         flat JSON request with api_method and its fields
  DELETE /api/cache   clear the response cache
  GET    /health, /ready, /metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "", "HTTP port (default from HTTP_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.HTTPPort = port
	}

	logger, err := config.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
