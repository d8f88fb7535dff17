package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fiteanalytics/finx-go/pkg/config"
	"github.com/fiteanalytics/finx-go/pkg/finx"
	"github.com/fiteanalytics/finx-go/pkg/healthprobe"
	"github.com/fiteanalytics/finx-go/pkg/httpserver"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	client := opts.Client
	if client == nil {
		var err error
		client, err = finx.New(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("setup client: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := setupHealthChecker(client)
	httpServer := setupHTTPServer(cfg, logger, healthChecker, client)

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		client:        client,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupHealthChecker(client *finx.Client) *healthprobe.HealthChecker {
	hc := healthprobe.New()
	hc.AddCheck("dispatcher", func() error {
		if !client.Ready() {
			return errors.New("dispatcher not ready")
		}
		return nil
	})
	return hc
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	client *finx.Client,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:           cfg.HTTPPort,
		Logger:         logger,
		HealthChecker:  healthChecker,
		Dispatcher:     client.Dispatcher(),
		RequestTimeout: cfg.HTTPTimeout,
	})
}
