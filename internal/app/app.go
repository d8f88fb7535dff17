package app

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/fiteanalytics/finx-go/pkg/config"
	"github.com/fiteanalytics/finx-go/pkg/finx"
	"github.com/fiteanalytics/finx-go/pkg/healthprobe"
	"github.com/fiteanalytics/finx-go/pkg/httpserver"
)

// App runs the local FinX gateway: one shared client behind an HTTP server.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	client        *finx.Client
	clientReady   atomic.Bool
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Options holds application options.
type Options struct {
	Client *finx.Client // Prebuilt client; built from cfg when nil
}
