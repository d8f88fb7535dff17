package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fiteanalytics/finx-go/pkg/config"
	"github.com/fiteanalytics/finx-go/pkg/finx"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "finx",
	Short: "FinX fixed-income analytics client",
	Long: `Command line client for the FinX analytics API.

Queries security reference data, analytics and projected cash flows over
HTTP or a WebSocket, batches them across many securities, and can run a
local gateway that shares one response cache between callers.

Credentials come from --api-key, a YAML file (--config or FINX_CONFIG_PATH),
a .env file (--env-file, FINX_ENV_PATH or ./.env) or FINX_API_KEY.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("api-key", "", "FinX API key (overrides every other source)")
	pf.String("endpoint", "", "FinX API endpoint")
	pf.String("config", "", "YAML credentials file")
	pf.String("env-file", "", ".env file to load")
	pf.StringP("transport", "t", "", "Transport: sync, concurrent or socket (default from FINX_TRANSPORT)")
}

// loadConfig resolves configuration with the persistent flags as overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	apiKey, _ := flags.GetString("api-key")
	endpoint, _ := flags.GetString("endpoint")
	configPath, _ := flags.GetString("config")
	envPath, _ := flags.GetString("env-file")
	transport, _ := flags.GetString("transport")

	cfg, err := config.Load(config.Overrides{
		APIKey:      apiKey,
		APIEndpoint: endpoint,
		ConfigPath:  configPath,
		EnvPath:     envPath,
		Transport:   transport,
	})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

// session bundles what a one-shot command needs.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
	client *finx.Client
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := config.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	client, err := finx.New(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("create client: %w", err)
	}

	return &session{cfg: cfg, logger: logger, client: client}, nil
}

func (s *session) close() {
	err := s.client.Close()
	if err != nil {
		s.logger.Warn("client-close-error", zap.Error(err))
	}
	_ = s.logger.Sync()
}
