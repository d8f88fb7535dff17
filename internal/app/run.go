package app

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const readinessInterval = time.Second

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("transport", a.cfg.Transport),
		zap.String("endpoint", a.cfg.APIEndpoint),
		zap.String("log-level", a.cfg.LogLevel))

	a.startComponents()

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort))

	return a.waitForShutdown()
}

func (a *App) startComponents() {
	a.wg.Add(1)
	go a.runHTTPServer()

	a.wg.Add(1)
	go a.monitorReadiness()
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

// monitorReadiness logs transitions of the client's readiness, which in
// socket mode follows the authentication state.
func (a *App) monitorReadiness() {
	defer a.wg.Done()

	ticker := time.NewTicker(readinessInterval)
	defer ticker.Stop()

	a.observeReadiness()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.observeReadiness()
		}
	}
}

func (a *App) observeReadiness() {
	ready := a.client.Ready()
	if a.clientReady.Swap(ready) == ready {
		return
	}

	if ready {
		a.logger.Info("client-ready")
	} else {
		a.logger.Warn("client-not-ready")
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}

// Stop requests shutdown of a running application.
func (a *App) Stop() {
	a.cancel()
}
