package websocket

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReconnectConfig holds the configuration for exponential backoff reconnection.
type ReconnectConfig struct {
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterPercent     float64 // 0.2 = 20%
	MaxAttempts       int     // 0 retries until the context ends
}

// ReconnectManager handles exponential backoff reconnection with jitter. The
// socket never reconnects on its own; callers invoke Reconnect when they need
// a live connection again.
type ReconnectManager struct {
	config         ReconnectConfig
	logger         *zap.Logger
	currentBackoff time.Duration
	mu             sync.Mutex
}

// NewReconnectManager creates a new reconnection manager with the specified config.
func NewReconnectManager(cfg ReconnectConfig, logger *zap.Logger) *ReconnectManager {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReconnectManager{
		config:         cfg,
		logger:         logger,
		currentBackoff: cfg.InitialDelay,
	}
}

// Reconnect attempts to reconnect using the provided connect function with
// exponential backoff. It gives up when the context ends or MaxAttempts
// consecutive attempts fail.
func (rm *ReconnectManager) Reconnect(ctx context.Context, connectFunc func(context.Context) error) error {
	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		backoff := rm.nextBackoff()

		rm.logger.Info("attempting-reconnection",
			zap.Duration("backoff", backoff),
			zap.Int("attempt", attempts+1))

		ReconnectAttemptsTotal.Inc()

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}

		err := connectFunc(ctx)
		if err == nil {
			rm.Reset()
			rm.logger.Info("reconnection-successful")
			return nil
		}

		rm.logger.Warn("reconnection-failed", zap.Error(err))
		ReconnectFailuresTotal.Inc()

		attempts++
		if rm.config.MaxAttempts > 0 && attempts >= rm.config.MaxAttempts {
			return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
		}

		rm.incrementBackoff()
	}
}

// Reset resets the backoff to the initial delay.
func (rm *ReconnectManager) Reset() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.currentBackoff = rm.config.InitialDelay
}

// nextBackoff returns the current backoff duration with jitter applied.
func (rm *ReconnectManager) nextBackoff() time.Duration {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	// backoff * (1.0 + random(0, jitterPercent))
	jitter := rand.Float64() * rm.config.JitterPercent
	backoffFloat := float64(rm.currentBackoff) * (1.0 + jitter)

	return time.Duration(backoffFloat)
}

// incrementBackoff increases the backoff duration by the multiplier.
func (rm *ReconnectManager) incrementBackoff() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	newBackoff := time.Duration(float64(rm.currentBackoff) * rm.config.BackoffMultiplier)

	if newBackoff > rm.config.MaxDelay {
		rm.currentBackoff = rm.config.MaxDelay
	} else {
		rm.currentBackoff = newBackoff
	}
}
